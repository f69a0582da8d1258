package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ctxtree/internal/capture"
	"ctxtree/internal/pipeline"
	"ctxtree/internal/store"
)

func openStore() (*store.Store, error) {
	if _, err := os.Stat(cfg.CacheDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("not initialized, run 'ctxtree init' first")
	}
	return store.New(cfg.CacheDir)
}

// projectDir resolves the transcript folder: the given argument, or the
// Claude folder for the current directory.
func projectDir(args []string) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return capture.FindProjectDir(dir)
}

// transcriptFiles expands directories into the session files they hold.
func transcriptFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := capture.FindTranscriptFiles(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func loadDocuments(files []string) []pipeline.Document {
	docs := make([]pipeline.Document, 0, len(files))
	for _, f := range files {
		entries, diags, err := capture.LoadSession(f)
		for _, d := range diags {
			slog.Warn("Skipped transcript line", "diagnostic", d.String())
		}
		if err != nil {
			slog.Warn("Failed to load transcript", "path", f, "error", err)
			continue
		}
		docs = append(docs, pipeline.Document{
			Project: filepath.Base(filepath.Dir(f)),
			Name:    f,
			Entries: entries,
		})
	}
	return docs
}
