package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"ctxtree/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ctxtree",
	Short: "Turn Claude transcripts into a navigable message tree",
	Long: `ctxtree reads Claude JSONL transcripts, pairs tool calls with their results,
folds sub-agent work under the call that spawned it, and prints the
conversation as an indented outline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		level := cfg.SlogLevel()
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .ctxtree/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when there is one. Without one the
// defaults apply and nothing is written; init creates the file.
func loadConfig() (config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	path := configPath
	if path == "" {
		path = config.DefaultPath(dir)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && configPath == "" {
		c := config.DefaultConfig()
		c.CacheDir = filepath.Join(dir, config.DirName)
		return c, nil
	}
	return config.Load(path)
}
