// backend/cmd/seed/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/config"
	"github.com/Ayash-Bera/ctxinject/backend/internal/database"
	"github.com/Ayash-Bera/ctxinject/backend/internal/importer"
	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/Ayash-Bera/ctxinject/backend/internal/repository"
	"github.com/Ayash-Bera/ctxinject/backend/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type seedFlags struct {
	projectID    string
	category     string
	urls         []string
	dryRun       bool
	verbose      bool
	maxChunkSize int
	concurrent   int
	delay        time.Duration
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &seedFlags{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import documentation pages into a project's knowledge base",
		Example: "  seed --project 6f1c... --category documentation \\\n" +
			"    --url https://docs.example.com/auth --url https://docs.example.com/deploy",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), flags, append(flags.urls, args...))
		},
	}

	cmd.Flags().StringVar(&flags.projectID, "project", "", "project id the entries belong to")
	cmd.Flags().StringVar(&flags.category, "category", "", "category for every entry (inferred from content when empty)")
	cmd.Flags().StringArrayVar(&flags.urls, "url", nil, "page to import (repeatable)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "log what would be created without writing")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	cmd.Flags().IntVar(&flags.maxChunkSize, "chunk-size", importer.DefaultMaxChunkSize, "maximum characters per entry")
	cmd.Flags().IntVar(&flags.concurrent, "concurrent", 2, "number of concurrent requests")
	cmd.Flags().DurationVar(&flags.delay, "delay", time.Second, "delay between requests to the same host")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runSeed(ctx context.Context, flags *seedFlags, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("at least one --url is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := utils.GetLogger()
	if flags.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var repo models.KnowledgeRepository
	if !flags.dryRun {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		dbManager, err := database.NewManager(&database.Config{
			DatabaseURL: cfg.Database.URL,
			RedisURL:    cfg.Redis.URL,
			LogLevel:    cfg.LogLevel,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database manager: %w", err)
		}
		defer dbManager.Close()

		// Keep any cached snapshot of this project's knowledge in step with the new rows.
		cache := database.NewCache(dbManager.Redis, logger)
		repo = repository.NewCachedKnowledgeRepository(
			repository.NewRepositoryManager(dbManager.DB).Knowledge,
			cache,
			cfg.Context.KnowledgeCacheTTL,
			logger,
		)
	}

	im, err := importer.NewImporter(repo, importer.Options{
		ProjectID:    flags.projectID,
		Category:     flags.category,
		DryRun:       flags.dryRun,
		MaxChunkSize: flags.maxChunkSize,
		Parallelism:  flags.concurrent,
		Delay:        flags.delay,
	}, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"project": flags.projectID,
		"pages":   len(urls),
		"dry_run": flags.dryRun,
	}).Info("Starting documentation import")

	result, err := im.Import(ctx, urls)
	if err != nil {
		return fmt.Errorf("import aborted: %w", err)
	}

	for _, e := range result.Errors {
		logger.WithError(e).Warn("Import error")
	}
	logger.WithFields(logrus.Fields{
		"pages":   result.Pages,
		"entries": result.Entries,
		"errors":  len(result.Errors),
	}).Info("Documentation import finished")

	if result.Entries == 0 {
		return fmt.Errorf("no knowledge entries were imported")
	}
	return nil
}
