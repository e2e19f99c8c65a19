package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/api/handlers"
	"github.com/maheshrc27/threadflow/internal/api/middleware"
	job "github.com/maheshrc27/threadflow/internal/jobs"
	"github.com/maheshrc27/threadflow/internal/oauth"
	"github.com/maheshrc27/threadflow/internal/platform"
	"github.com/maheshrc27/threadflow/internal/queue"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
	"github.com/maheshrc27/threadflow/internal/storage"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

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
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return origin == cfg.FrontendURL
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	draftRepo := repository.NewDraftRepository(db)
	unitRepo := repository.NewContentUnitRepository(db)
	mediaRepo := repository.NewMediaItemRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)

	blobStore, err := storage.NewS3Store(*cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}
	platformClient := platform.NewClient(cfg.PlatformBaseURL)
	oauthProvider := oauth.NewProvider(*cfg)

	draftService := service.NewDraftService(db, draftRepo, unitRepo, mediaRepo, service.NanoidGenerator, time.Now)
	mediaService := service.NewMediaService(draftRepo, unitRepo, mediaRepo, blobStore, platformClient, service.NanoidGenerator, storage.NewStorageKey)
	credentialService := service.NewCredentialService(credentialRepo, oauthProvider, cfg.SecretKey, time.Now)
	publishService := service.NewPublishService(draftService, mediaService, credentialService, platformClient, time.Now)
	scheduleService := service.NewScheduleService(draftService, time.Now)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	draft := handlers.NewDraftHandler(draftService)
	api.Post("/drafts/create", draft.CreateDraft)
	api.Get("/drafts", draft.ListDrafts)
	api.Put("/drafts/:id", draft.UpdateDraft)
	api.Post("/drafts/remove", draft.RemoveDraft)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/grant", media.RequestUploadGrant)
	api.Post("/media/attach", media.RecordAttachment)
	api.Post("/media/detach", media.DeleteAttachment)

	publish := handlers.NewPublishHandler(publishService, scheduleService, client)
	api.Post("/drafts/publish", publish.PublishDraft)
	api.Post("/drafts/schedule", publish.ScheduleDraft)
	api.Post("/drafts/unschedule", publish.UnscheduleDraft)

	// cron jobs
	refreshJob := job.NewCredentialRefreshJob(credentialRepo, credentialService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshJob.RefreshExpiring)
	c.Start()

	// dispatch worker
	queueW := queue.NewQueue(draftRepo, publishService)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishDraft, queueW.HandlePublishDraftTask)

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

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
