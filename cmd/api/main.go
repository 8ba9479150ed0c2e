package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alfredoptarigan/readysetrole/internal/config"
	"alfredoptarigan/readysetrole/internal/handlers"
	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
	"alfredoptarigan/readysetrole/internal/repositories"
	"alfredoptarigan/readysetrole/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Println("✅ Config loaded successfully")

	appLogger := logger.NewZapLogger(cfg.Log.FilePath, cfg.IsProduction())
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Gemini AI
	client, err := services.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}

	promptBuilder := services.NewPromptBuilder(cfg.Gemini.SystemPromptPath)
	info := promptBuilder.Info()
	if !info.Loaded {
		appLogger.Warn("main", "system prompt not found, using built-in prompt", map[string]interface{}{
			"path": info.Source,
		})
	}

	chatModel := services.WithRetry(
		services.NewGeminiService(client, services.GenerationOptions{
			SystemInstruction: promptBuilder.SystemInstruction(),
			Temperature:       cfg.Gemini.Temperature,
			MaxOutputTokens:   cfg.Gemini.MaxOutputTokens,
			SearchTool:        cfg.Gemini.SearchTool,
		}, appLogger),
		cfg.Worker.RetryMaxAttempts,
		appLogger,
	)
	fileStore := services.NewGeminiFileStore(client)
	activator := services.NewActivator(fileStore, cfg.Files.PollInterval, cfg.Files.ActivationTimeout, appLogger)
	log.Println("✅ Gemini AI initialized successfully")

	// Initialize session store and file janitor
	sessionRepo, janitor, err := initSessionStore(ctx, cfg, fileStore, appLogger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize session store: %v", err)
	}
	log.Printf("✅ Session store initialized (%s)", cfg.Session.Store)

	// Initialize export store
	exportStore, err := initExportStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize export store: %v", err)
	}
	log.Println("✅ Export store initialized successfully")

	sessionService := services.NewSessionService(
		sessionRepo,
		chatModel,
		fileStore,
		activator,
		janitor,
		exportStore,
		promptBuilder,
		services.SessionOptions{
			DefaultModel:   cfg.Gemini.DefaultModel,
			MaxAttachments: cfg.Files.MaxAttachments,
			MaxFileSize:    cfg.Files.MaxFileSize,
		},
		appLogger,
	)
	log.Println("✅ Services initialized successfully")

	janitor.Start(ctx)
	log.Println("✅ File janitor started successfully")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ReadySetRole API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		BodyLimit:    int(cfg.Files.MaxFileSize) * (cfg.Files.MaxAttachments + 1),
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	handlers.RegisterRoutes(app.Group("/api/v1"), handlers.Handlers{
		Session: handlers.NewSessionHandler(sessionService),
		Upload:  handlers.NewUploadHandler(sessionService, cfg.Files.MaxFileSize),
		Tailor:  handlers.NewTailorHandler(sessionService),
		Result:  handlers.NewResultHandler(sessionService),
	})
	log.Println("✅ Handlers initialized")

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "ReadySetRole API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/sessions",
				"PUT /api/v1/sessions/:id/resume",
				"POST /api/v1/sessions/:id/attachments",
				"POST /api/v1/sessions/:id/tailor",
				"POST /api/v1/sessions/:id/messages",
				"GET /api/v1/sessions/:id/download",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := serve(app, addr, quit, janitor, cancel); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	log.Println("✅ Server stopped")
}

type server interface {
	Listen(addr string) error
	Shutdown() error
}

// serve blocks until quit fires, then shuts the server down and stops the
// janitor. It returns only once the janitor has drained its queue.
func serve(srv server, addr string, quit <-chan os.Signal, janitor services.FileJanitor, cancel context.CancelFunc) error {
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
		janitor.Stop()
		cancel()
	}()

	if err := srv.Listen(addr); err != nil {
		return err
	}
	<-done
	return nil
}

// initSessionStore picks the session repository and wires its expiry into the
// janitor, so remote files of abandoned sessions get deleted.
func initSessionStore(
	ctx context.Context,
	cfg *config.Config,
	fileStore services.FileStore,
	log logger.ILogger,
) (repositories.SessionRepository, services.FileJanitor, error) {
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		rdb, err := config.InitRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		janitor := services.NewFileJanitor(fileStore, nil, cfg.Worker.Concurrency, cfg.Worker.SweepInterval, log)
		return repositories.NewRedisSessionRepository(rdb, cfg.Session.TTL), janitor, nil

	case config.SessionStorePostgres:
		db, err := config.InitDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := repositories.NewPostgresSessionRepository(db, cfg.Session.TTL)
		janitor := services.NewFileJanitor(fileStore, repo, cfg.Worker.Concurrency, cfg.Worker.SweepInterval, log)
		return repo, janitor, nil

	default:
		repo := repositories.NewMemorySessionRepository(cfg.Session.TTL)
		janitor := services.NewFileJanitor(fileStore, nil, cfg.Worker.Concurrency, cfg.Worker.SweepInterval, log)
		repo.OnEvicted(func(session *models.Session) {
			janitor.ReleaseSession(session)
		})
		return repo, janitor, nil
	}
}

func initExportStore(ctx context.Context, cfg *config.Config) (services.ExportStore, error) {
	if cfg.UseR2() {
		return services.NewR2ExportStore(ctx, services.R2Options{
			AccountID:     cfg.Export.R2AccountID,
			Bucket:        cfg.Export.R2Bucket,
			AccessKey:     cfg.Export.R2AccessKey,
			SecretKey:     cfg.Export.R2SecretKey,
			PresignExpiry: cfg.Export.PresignExpiry,
		})
	}
	return services.NewLocalExportStore(cfg.Export.Path)
}
