package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ctxtree/internal/capture"
	"ctxtree/internal/store"
	"ctxtree/internal/transcript"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [dir]",
	Short: "List sessions of a project with their token usage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := projectDir(args)
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		project := filepath.Base(dir)
		refreshed, err := refreshProject(st, dir, project)
		if err != nil {
			return err
		}
		slog.Debug("Refreshed session cache", "project", project, "files", refreshed)

		sessions, err := st.ListSessions(project)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found for this project.")
			return nil
		}

		fmt.Printf("%-10s %-16s %6s %10s  %s\n", "SESSION", "LAST ACTIVE", "MSGS", "TOKENS", "FIRST MESSAGE")
		fmt.Println(strings.Repeat("─", 78))
		for _, s := range sessions {
			tokens := s.TotalTokens()
			if tokens == 0 {
				tokens = s.EstimatedTokens
			}
			title := s.Summary
			if title == "" {
				title = s.FirstUserMessage
			}
			fmt.Printf("%-10s %-16s %6d %10s  %s\n",
				shortID(s.SessionID),
				humanize.Time(s.LastTimestamp),
				s.MessageCount,
				humanize.Comma(int64(tokens)),
				oneLine(title, 40),
			)
		}
		return nil
	},
}

// refreshProject recomputes aggregates for every transcript in dir whose
// size or mtime changed since it was cached.
func refreshProject(st *store.Store, dir, project string) (int, error) {
	files, err := capture.FindTranscriptFiles(dir)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", dir, err)
	}

	refreshed := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			slog.Warn("Failed to stat transcript", "path", f, "error", err)
			continue
		}
		fresh, err := st.FileFresh(f, info.ModTime(), info.Size())
		if err != nil {
			return refreshed, err
		}
		if fresh {
			continue
		}

		entries, diags, err := capture.LoadSession(f)
		if err != nil {
			slog.Warn("Failed to load transcript", "path", f, "error", err)
			continue
		}
		for _, d := range diags {
			slog.Debug("Skipped transcript line", "diagnostic", d.String())
		}

		opts := transcript.DefaultOptions()
		opts.SkipWarmup = cfg.Render.SkipWarmup
		n := transcript.Normalize(entries, opts)
		var sessions []store.Session
		for _, a := range transcript.Aggregate(n, cfg.Render.PreviewLength) {
			sessions = append(sessions, store.SessionFromAggregate(project, f, a))
		}
		if err := st.SaveFile(store.File{Path: f, Project: project, ModTime: info.ModTime(), Size: info.Size()}, sessions); err != nil {
			return refreshed, err
		}
		refreshed++
	}

	if _, err := st.PruneFiles(project, files); err != nil {
		return refreshed, err
	}
	return refreshed, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
