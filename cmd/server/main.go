package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudvault/backend/internal/config"
	"github.com/cloudvault/backend/internal/database"
	"github.com/cloudvault/backend/internal/diskreport"
	"github.com/cloudvault/backend/internal/filestore"
	"github.com/cloudvault/backend/internal/handlers"
	"github.com/cloudvault/backend/internal/middleware"
	"github.com/cloudvault/backend/internal/quota"
	"github.com/cloudvault/backend/pkg/logger"
	"github.com/cloudvault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store, err := filestore.New(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("file store initialization failed: %v", err)
	}
	accountant := quota.NewAccountant(store)
	reporter := diskreport.NewReporter(db, cfg.Disk.Subdir)

	authHandler := handlers.NewAuthHandler(db, cfg.Storage.RegisterQuotaGB)
	usersHandler := handlers.NewUsersHandler(db, cfg.Storage.DefaultQuotaGB)
	filesHandler := handlers.NewFilesHandler(store, accountant)
	diskHandler := handlers.NewDiskHandler(reporter)

	authMiddleware := middleware.NewAuthMiddleware(db)

	// The body limit sits above the per-file cap so that multipart framing
	// never truncates a maximum-size upload.
	app := fiber.New(fiber.Config{BodyLimit: int(quota.MaxFileBytes) + 64*1024*1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Post("/", usersHandler.Create)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/upload", filesHandler.Upload)
	fileRoutes.Get("/", filesHandler.List)
	fileRoutes.Get("/usage", filesHandler.Usage)
	fileRoutes.Get("/:name/download", filesHandler.Download)
	fileRoutes.Delete("/:name", filesHandler.Delete)

	diskRoutes := api.Group("/disk", authMiddleware.RequireAuth, middleware.AdminOnly)
	diskRoutes.Get("/info", diskHandler.Info)
	diskRoutes.Get("/usage", diskHandler.Usage)
	diskRoutes.Get("/users/:id/files", diskHandler.UserFiles)
	diskRoutes.Get("/users/:id/files/:name/download", middleware.SuperadminOnly, diskHandler.DownloadUserFile)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":         cfg.Server.Port,
		"address":      listenAddr,
		"storage_root": cfg.Storage.Root,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
