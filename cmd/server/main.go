package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"

	config "github.com/tanishq27/postloom/configs"
	"github.com/tanishq27/postloom/internal/api/handlers"
	"github.com/tanishq27/postloom/internal/api/middleware"
	"github.com/tanishq27/postloom/internal/dispatcher"
	job "github.com/tanishq27/postloom/internal/jobs"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/queue"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/internal/service"
	"github.com/tanishq27/postloom/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	logger.New(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("unhandled request error", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	settingsRepository := repository.NewSettingsRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	r2Service, err := service.NewR2Service(cfg.R2)
	if err != nil {
		log.Fatalf("Failed to set up object storage: %v", err)
	}

	userService := service.NewUserService(userRepo)
	postService := service.NewPostService(db, postRepo, attemptRepo, mediaAssetRepo, r2Service, cfg.MonthlyPostLimit, cfg.R2.PublicBase)
	platformService := service.NewPlatformService(cfg, socialAccountRepo)
	instagramService := service.NewInstagramService(cfg, socialAccountRepo)
	tiktokService := service.NewTiktokService(cfg, socialAccountRepo)
	facebookService := service.NewFacebookService(cfg, socialAccountRepo)
	settingsService := service.NewSettingsService(settingsRepository)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	restyClient := resty.New().SetTimeout(cfg.Dispatcher.AdapterTimeout)
	httpClient := &http.Client{Timeout: cfg.Dispatcher.AdapterTimeout}
	registry := platform.NewRegistry(
		platform.NewMastodonAdapter(restyClient),
		platform.NewTelegramAdapter(restyClient),
		platform.NewFacebookAdapter(restyClient),
		platform.NewInstagramAdapter(httpClient),
		platform.NewTiktokAdapter(httpClient),
	)

	notifier := queue.NewNotifier(client)
	disp := dispatcher.New(cfg.Dispatcher, []byte(cfg.SecretKey), postRepo, socialAccountRepo, attemptRepo, mediaAssetRepo, registry, notifier)
	gateway := dispatcher.NewGateway(disp)

	authMiddleware := middleware.NewAuthMiddleware(cfg, apiKeyService)

	platformH := handlers.NewPlatformHandler(platformService, instagramService, tiktokService, facebookService, cfg)
	app.Get("/auth/:platform", platformH.AddSocialAccount)
	app.Get("/auth/:platform/callback", platformH.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Post("/user/remove", user.RemoveUser)

	settings := handlers.NewSettingsHandler(settingsService)
	api.Get("/settings/info", settings.GetSettingsInfo)
	api.Post("/settings/update", settings.UpdateSettings)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(postService, gateway)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/media/upload", post.UploadMedia)
	api.Post("/posts/schedule", post.SchedulePost)
	api.Post("/posts/publish_now", post.PublishNow)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/attempts", post.ListAttempts)
	api.Post("/posts/archive", post.ArchivePost)
	api.Post("/posts/remove", post.RemovePost)

	// social accounts api routes
	api.Post("/accounts/mastodon", platformH.ConnectMastodon)
	api.Post("/accounts/telegram", platformH.ConnectTelegram)
	api.Get("/accounts", platformH.ListSocialAccounts)
	api.Post("/accounts/remove", platformH.DeleteSocialAccount)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, tiktokService, instagramService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go disp.Run(ctx)

	go func() {
		slog.Info("starting metrics server", "addr", cfg.MetricsAddr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Fatalf("Could not start metrics server: %v", err)
		}
	}()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		queueW := queue.NewQueue(settingsRepository)
		mux.HandleFunc(queue.TaskTypeNotifyResult, queueW.HandleNotifyResultTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db, cancel)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB, cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")
	cancel()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
