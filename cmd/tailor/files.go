package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"alfredoptarigan/readysetrole/internal/services"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage files uploaded to the Gemini Files API",
	}

	var dryRun bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every uploaded file owned by the API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := services.NewGeminiClient(cmd.Context(), cfg.Gemini.APIKey)
			if err != nil {
				return err
			}
			return purgeFiles(cmd.Context(), services.NewGeminiFileStore(client), dryRun)
		},
	}
	purge.Flags().BoolVar(&dryRun, "dry-run", false, "list the files without deleting them")

	cmd.AddCommand(purge)
	return cmd
}

func purgeFiles(ctx context.Context, store services.FileStore, dryRun bool) error {
	files, err := store.List(ctx)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Println("No uploaded files.")
		return nil
	}

	var failed int
	for _, f := range files {
		label := fmt.Sprintf("%s (%s, %s)", f.Name, f.MIMEType, services.HumanSize(f.SizeBytes))
		if dryRun {
			fmt.Printf("  %s %s\n", color.CyanString("•"), label)
			continue
		}
		if err := store.Delete(ctx, f.Name); err != nil {
			failed++
			fmt.Printf("  %s %s: %v\n", color.RedString("✗"), label, err)
			continue
		}
		fmt.Printf("  %s %s\n", color.GreenString("✓"), label)
	}

	if failed > 0 {
		return fmt.Errorf("failed to delete %d of %d files", failed, len(files))
	}
	if !dryRun {
		fmt.Printf("\n%s Deleted %d files\n", color.GreenString("✓"), len(files))
	}
	return nil
}
