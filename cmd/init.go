package cmd

import (
	"fmt"
	"os"

	"ctxtree/internal/config"
	"ctxtree/internal/store"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .ctxtree with a default config and an empty cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		path := config.DefaultPath(dir)
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Already initialized, %s exists\n", path)
			return nil
		}

		c, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		st, err := store.New(c.CacheDir)
		if err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		st.Close()

		fmt.Printf("Initialized ctxtree in %s\n", dir)
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}
