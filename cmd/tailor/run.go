package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
	"alfredoptarigan/readysetrole/internal/repositories"
	"alfredoptarigan/readysetrole/internal/services"
)

type runOptions struct {
	resumePath  string
	jdPath      string
	attachments []string
	selection   string
	model       string
	outPath     string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score a resume against a job description and optionally apply packs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTailor(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.resumePath, "resume", "", "resume file (pdf, docx or txt)")
	cmd.Flags().StringVar(&opts.jdPath, "jd", "", "job description text file")
	cmd.Flags().StringSliceVar(&opts.attachments, "attach", nil, "extra files to attach (repeatable)")
	cmd.Flags().StringVar(&opts.selection, "select", "", `packs to apply, e.g. "1,3" or "0" for all`)
	cmd.Flags().StringVar(&opts.model, "model", "", "Gemini model (defaults to GEMINI_MODEL)")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write the final reply to this file")
	_ = cmd.MarkFlagRequired("resume")
	_ = cmd.MarkFlagRequired("jd")

	return cmd
}

func runTailor(ctx context.Context, opts *runOptions) error {
	if opts.selection != "" {
		if _, ok := services.ParseSelection(opts.selection); !ok {
			return fmt.Errorf("invalid --select %q: use comma separated pack numbers or 0", opts.selection)
		}
	}

	jd, err := os.ReadFile(opts.jdPath)
	if err != nil {
		return fmt.Errorf("failed to read job description: %w", err)
	}

	log := logger.NewZapLogger(cfg.Log.FilePath, cfg.IsProduction())
	defer log.Sync()

	client, err := services.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return err
	}

	promptBuilder := services.NewPromptBuilder(cfg.Gemini.SystemPromptPath)
	chat := services.WithRetry(services.NewGeminiService(client, services.GenerationOptions{
		SystemInstruction: promptBuilder.SystemInstruction(),
		Temperature:       cfg.Gemini.Temperature,
		MaxOutputTokens:   cfg.Gemini.MaxOutputTokens,
		SearchTool:        cfg.Gemini.SearchTool,
	}, log), cfg.Worker.RetryMaxAttempts, log)

	fileStore := services.NewGeminiFileStore(client)
	janitor := services.NewFileJanitor(fileStore, nil, cfg.Worker.Concurrency, 0, log)
	janitor.Start(ctx)
	defer janitor.Stop()

	exports, err := services.NewLocalExportStore(cfg.Export.Path)
	if err != nil {
		return err
	}

	svc := services.NewSessionService(
		repositories.NewMemorySessionRepository(cfg.Session.TTL),
		chat,
		fileStore,
		services.NewActivator(fileStore, cfg.Files.PollInterval, cfg.Files.ActivationTimeout, log),
		janitor,
		exports,
		promptBuilder,
		services.SessionOptions{
			DefaultModel:   cfg.Gemini.DefaultModel,
			MaxAttachments: cfg.Files.MaxAttachments,
			MaxFileSize:    cfg.Files.MaxFileSize,
		},
		log,
	)

	session, err := svc.Create(ctx)
	if err != nil {
		return err
	}
	// Delete hands the session's remote files to the janitor, drained by Stop.
	defer func() {
		if err := svc.Delete(context.WithoutCancel(ctx), session.ID); err != nil {
			fmt.Fprintf(os.Stderr, "%s could not clean up session: %v\n", color.YellowString("⚠"), err)
		}
	}()

	if opts.model != "" {
		if _, err := svc.SelectModel(ctx, session.ID, opts.model); err != nil {
			return err
		}
	}

	if err := saveResume(ctx, svc, session.ID, opts.resumePath); err != nil {
		return err
	}
	fmt.Printf("%s Resume loaded: %s\n", color.GreenString("✓"), filepath.Base(opts.resumePath))

	if len(opts.attachments) > 0 {
		if err := addAttachments(ctx, svc, session.ID, opts.attachments); err != nil {
			return err
		}
	}

	fmt.Printf("\n%s Tailoring with %s...\n", color.CyanString("→"), modelName(opts.model))
	start := time.Now()
	result, err := svc.Tailor(ctx, session.ID, string(jd))
	if err != nil {
		return err
	}
	printPreScore(result.Session)
	fmt.Printf("  (%s)\n", time.Since(start).Round(time.Millisecond))

	final := result.Reply
	if opts.selection != "" {
		fmt.Printf("\n%s Applying packs %s...\n", color.CyanString("→"), opts.selection)
		result, err = svc.Reply(ctx, session.ID, opts.selection)
		if err != nil {
			return err
		}
		printPostScore(result.Session)
		final = result.Reply
	}

	if opts.outPath != "" {
		if err := os.WriteFile(opts.outPath, []byte(final), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("\n%s Saved to %s\n", color.GreenString("✓"), opts.outPath)
		return nil
	}

	fmt.Println()
	fmt.Println(color.New(color.Bold, color.Underline).Sprint(services.BotName))
	fmt.Println(strings.Repeat("═", 50))
	fmt.Println(final)
	return nil
}

// saveResume keeps plain text resumes inline and uploads the other formats.
func saveResume(ctx context.Context, svc services.SessionService, id uuid.UUID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read resume: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".txt") {
		_, err = svc.SaveResume(ctx, id, string(data), nil)
		return err
	}

	_, err = svc.SaveResume(ctx, id, "", &services.Upload{Name: filepath.Base(path), Data: data})
	return err
}

func addAttachments(ctx context.Context, svc services.SessionService, id uuid.UUID, paths []string) error {
	uploads := make([]services.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}
		uploads = append(uploads, services.Upload{Name: filepath.Base(p), Data: data})
	}

	result, err := svc.AddAttachments(ctx, id, uploads)
	if err != nil {
		return err
	}
	for _, name := range result.Added {
		fmt.Printf("%s Attached %s\n", color.GreenString("✓"), name)
	}
	for _, name := range result.Skipped {
		fmt.Printf("%s Skipped duplicate %s\n", color.YellowString("⚠"), name)
	}
	for _, f := range result.Failed {
		fmt.Printf("%s %s: %s\n", color.RedString("✗"), f.Name, f.Error)
	}
	return nil
}

func modelName(model string) string {
	if model != "" {
		return model
	}
	return cfg.Gemini.DefaultModel
}

func printPreScore(s *models.Session) {
	fmt.Printf("\n%s %s\n", color.New(color.Bold).Sprint("Pre-Score:"), scoreString(s.Scores.Overall))
	if len(s.Scores.MissingKeywords) > 0 {
		fmt.Printf("  Missing: %s\n", strings.Join(s.Scores.MissingKeywords, ", "))
	}
	for _, p := range s.Packs {
		fmt.Printf("  %s %d) %s (+%.0f) %s\n", color.CyanString("•"), p.ID, p.Name, p.Delta, strings.Join(p.Keywords, ", "))
	}
}

func printPostScore(s *models.Session) {
	fmt.Printf("\n%s %s -> %s\n", color.New(color.Bold).Sprint("Post-Score:"),
		scoreString(s.Scores.Overall), scoreString(s.PostScores.Overall))
}

func scoreString(score float64) string {
	text := fmt.Sprintf("%.0f/100", score)
	switch {
	case score >= 75:
		return color.GreenString(text)
	case score >= 50:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}
