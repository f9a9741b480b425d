package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rpupo63/portfolio-cms/api"
	"github.com/rpupo63/portfolio-cms/config"
	"github.com/rpupo63/portfolio-cms/database"
	"github.com/rpupo63/portfolio-cms/services"
	"github.com/rpupo63/portfolio-cms/storage"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "portfolio",
	Short:         "Portfolio CMS backend",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load environment variables from .env file
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
		cfg = config.Load(config.New())
		setupLogging(cfg.DevelopmentLogConsole)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(true)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, _ := cmd.Flags().GetBool("migrate")
		return serve(migrate)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", true, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func setupLogging(console bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// connect opens the database the command needs. The caller must Close it.
func connect() (database.Database, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return database.Database{}, fmt.Errorf("connecting to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return database.Database{}, fmt.Errorf("testing database connection: %w", err)
	}
	return db, nil
}

// newBlobStore picks S3 when a bucket is configured and the local uploads directory otherwise.
// The second return value is the directory to serve under /uploads/, empty for S3.
func newBlobStore(ctx context.Context) (storage.BlobStore, string, error) {
	if cfg.S3.Enabled() {
		store, err := storage.NewS3Store(ctx, cfg.S3, cfg.Storage.MaxUploadBytes)
		if err != nil {
			return nil, "", err
		}
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Uploads go to S3")
		return store, "", nil
	}

	store, err := storage.NewLocalStore(cfg.Storage.UploadsDir, "/uploads", cfg.Storage.MaxUploadBytes)
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("dir", store.Dir()).Msg("Uploads go to the local uploads directory")
	return store, store.Dir(), nil
}

func newProjectService(db database.Database) (*services.ProjectService, error) {
	content, err := storage.NewContentStore(cfg.Storage.MarkdownDir)
	if err != nil {
		return nil, err
	}
	blobs, _, err := newBlobStore(context.Background())
	if err != nil {
		return nil, err
	}
	return services.NewProjectService(db.ProjectRepo(), content, blobs), nil
}

func serve(runMigrations bool) error {
	log.Info().Msg("Initializing app...")

	db, err := connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	if runMigrations {
		if err := db.MigrateUp(); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	content, err := storage.NewContentStore(cfg.Storage.MarkdownDir)
	if err != nil {
		return err
	}
	blobs, uploadsDir, err := newBlobStore(context.Background())
	if err != nil {
		return err
	}

	metrics := api.NewMetrics()
	deps := api.Dependencies{
		DB:         db,
		Projects:   services.NewProjectService(db.ProjectRepo(), content, blobs),
		AccessLogs: services.NewAccessLogService(db.AccessLogRepo()),
		Auth:       services.NewAuthService(cfg.Auth),
		Blobs:      blobs,
		Metrics:    metrics,
		UploadsDir: uploadsDir,
	}

	var recorder *services.AccessLogRecorder
	if !cfg.DisableAccessLog {
		recorder = services.NewAccessLogRecorder(db.AccessLogRepo(), cfg.AccessLogBuffer, metrics.AccessLogDropped)
		deps.Recorder = recorder
	}
	if cfg.Auth.AdminPassword == "" {
		log.Warn().Msg("BACKEND_PASSWORD is not set; admin login is disabled")
	}

	server, err := api.NewServer(cfg, deps)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	errChannel := make(chan error, 2)
	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(cfg.ShutdownTimeout)

	if recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := recorder.Close(ctx); err != nil {
			log.Error().Err(err).Int64("dropped", recorder.Dropped()).Msg("Access log not fully drained")
		}
		log.Info().Int64("written", recorder.Written()).Int64("dropped", recorder.Dropped()).Msg("Access log recorder stopped")
	}
	return nil
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
