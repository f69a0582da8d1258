package cmd

import (
	"fmt"

	"ctxtree/internal/content"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tools with typed parameters and results",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%-18s %-22s %s\n", "TOOL", "PARAMETERS", "RESULT")
		fmt.Println("──────────────────────────────────────────────────────")
		for _, t := range content.Tools() {
			result := "text"
			if t.TypedOutput {
				result = "typed"
			}
			fmt.Printf("%-18s %-22s %s\n", t.Name, t.Input, result)
		}
	},
}
