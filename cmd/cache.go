package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the session cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Drop cached sessions of a project",
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
		n, err := st.ClearProject(project)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d cached sessions for %s\n", n, project)
		return nil
	},
}
