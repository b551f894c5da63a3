// Package main is the Conjure planning studio CLI. It runs the staged
// planning pipeline for a project idea, writing each stage's output as
// a PDF and optionally archiving the finished folder.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sorceryai/conjure/internal/config"
	"github.com/sorceryai/conjure/internal/database"
	"github.com/sorceryai/conjure/internal/planning"
	"github.com/sorceryai/conjure/internal/reliability"
	"github.com/sorceryai/conjure/pkg/logger"
)

var (
	archiveFlag bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Conjure planning studio",
	Long: `Turn a one-line product idea into a set of design documents:
similar projects, a design brief, an architecture flowchart, user
research, a journey map, and a prototype sketch. Each stage is saved
as a PDF under the data directory.`,
}

var runCmd = &cobra.Command{
	Use:   "run <project idea>",
	Short: "Run the full planning pipeline for an idea",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

		if cfg.GenAI.APIKey == "" {
			return fmt.Errorf("GENAI_API_KEY is not set")
		}

		llm, err := planning.NewGenAIClient(ctx, cfg.GenAI.APIKey, cfg.GenAI.CompletionModel)
		if err != nil {
			return fmt.Errorf("failed to create completion client: %w", err)
		}

		embedder, err := planning.NewGenAIEmbedder(ctx, cfg.GenAI.APIKey, cfg.GenAI.EmbeddingModel)
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}

		planningDB, err := database.New(database.Config{
			Path:    cfg.PlanningDBPath(),
			Profile: database.ProfileStandard,
			Name:    "planning",
		})
		if err != nil {
			return fmt.Errorf("failed to open planning database: %w", err)
		}
		defer planningDB.Close()

		store := planning.NewDocumentStore(planningDB.Conn(), embedder)
		if err := store.InitSchema(); err != nil {
			return fmt.Errorf("failed to initialize planning schema: %w", err)
		}

		pipeline := planning.NewPipeline(llm, store, cfg.DataDir, nil, log)
		result, err := pipeline.Run(ctx, query)
		if err != nil {
			return err
		}

		fmt.Printf("Planning run completed: %d stages\n", len(result.Stages))
		for _, stage := range result.Stages {
			fmt.Printf("  %s -> %s\n", stage.Name, stage.PDFPath)
			if stage.DiagramPath != "" {
				fmt.Printf("    diagram: %s\n", stage.DiagramPath)
			}
		}

		if archiveFlag {
			var uploader reliability.Uploader
			if cfg.Archive.Bucket != "" {
				s3Client, err := reliability.NewS3Client(ctx, reliability.S3Config{
					Bucket:    cfg.Archive.Bucket,
					Endpoint:  cfg.Archive.Endpoint,
					Region:    cfg.Archive.Region,
					AccessKey: cfg.Archive.AccessKey,
					SecretKey: cfg.Archive.SecretKey,
				}, log)
				if err != nil {
					return fmt.Errorf("failed to create archive storage client: %w", err)
				}
				uploader = s3Client
			}

			archiver := reliability.NewArchiveService(uploader, cfg.DataDir, log)
			archivePath, err := archiver.ArchiveProject(ctx, result.ProjectFolder)
			if err != nil {
				return fmt.Errorf("failed to archive project: %w", err)
			}
			fmt.Printf("Archived to %s\n", archivePath)

			if err := archiver.RotateRemote(ctx, cfg.Archive.RetentionDays); err != nil {
				log.Warn().Err(err).Msg("Archive rotation failed")
			}
		}

		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <archive.tar.gz>",
	Short: "Verify a project archive against its manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

		archiver := reliability.NewArchiveService(nil, cfg.DataDir, log)
		if err := archiver.VerifyArchive(args[0]); err != nil {
			return err
		}

		fmt.Println("Archive verified.")
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	runCmd.Flags().BoolVar(&archiveFlag, "archive", false, "archive the project folder after the run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
