package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"alfredoptarigan/readysetrole/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor a resume and cover letter to a job description with Gemini",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if cfg.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
		return nil
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newRunCmd(), newFilesCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
		os.Exit(1)
	}
}
