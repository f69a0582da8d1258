package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ctxtree/internal/outline"
	"ctxtree/internal/pipeline"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

var (
	renderFlat    bool
	renderNoDedup bool
	renderCopy    bool
	renderOut     string
	renderColor   string
	renderWorkers int
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().BoolVar(&renderFlat, "flat", false, "print the flat preorder view instead of the outline")
	renderCmd.Flags().BoolVar(&renderNoDedup, "no-dedup", false, "keep sub-agent replies that repeat their tool result")
	renderCmd.Flags().BoolVar(&renderCopy, "copy", false, "copy the output to the clipboard")
	renderCmd.Flags().StringVar(&renderOut, "out", "", "write the output to a file")
	renderCmd.Flags().StringVar(&renderColor, "color", "", "auto, always or never (default from config)")
	renderCmd.Flags().IntVar(&renderWorkers, "workers", -1, "documents processed at once (default from config)")
}

var renderCmd = &cobra.Command{
	Use:   "render [file|dir]...",
	Short: "Print transcripts as message trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			dir, err := projectDir(nil)
			if err != nil {
				return err
			}
			args = []string{dir}
		}
		files, err := transcriptFiles(args)
		if err != nil {
			return err
		}
		docs := loadDocuments(files)
		if len(docs) == 0 {
			fmt.Println("No transcripts found.")
			return nil
		}

		opts := pipeline.DefaultOptions()
		opts.Dedup = cfg.Render.Dedup && !renderNoDedup
		opts.Normalize.SkipWarmup = cfg.Render.SkipWarmup
		opts.PreviewLength = cfg.Render.PreviewLength
		workers := cfg.Workers
		if renderWorkers >= 0 {
			workers = renderWorkers
		}

		results, err := pipeline.RunAll(cmd.Context(), docs, opts, workers)
		if err != nil {
			return err
		}

		mode := cfg.Render.Color
		if renderColor != "" {
			mode = renderColor
		}
		color := !renderCopy && renderOut == "" && outline.ColorEnabled(mode, os.Stdout)

		var buf bytes.Buffer
		f := outline.New(&buf, outline.Options{Color: color})
		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "warning: %s: %v\n", res.Document, res.Err)
				continue
			}
			if len(results) > 1 {
				fmt.Fprintf(&buf, "# %s\n", res.Document)
			}
			if renderFlat {
				err = f.WriteFlat(&buf, res.Tree)
			} else {
				err = f.Write(&buf, res.Tree)
			}
			if err != nil {
				return err
			}
			slog.Debug("Rendered document", "document", res.Document, "nodes", res.Tree.Len(), "elapsed", res.Elapsed)
		}

		out := buf.String()
		if renderCopy {
			if err := clipboard.WriteAll(out); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
			} else {
				fmt.Println("Outline copied to clipboard!")
			}
		}

		if renderOut != "" {
			outPath := renderOut
			if !filepath.IsAbs(outPath) {
				dir, _ := os.Getwd()
				outPath = filepath.Join(dir, outPath)
			}
			if err := os.WriteFile(outPath, []byte(out), 0644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Printf("Outline written to %s\n", outPath)
		}

		if !renderCopy && renderOut == "" {
			fmt.Print(out)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d transcripts failed", failed, len(results))
		}
		return nil
	},
}
