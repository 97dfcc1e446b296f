package main

import (
	"context"
	"log"
	"os"
	"time"

	"jobtrack/internal/database"
	"jobtrack/internal/handler"
	"jobtrack/internal/middleware"
	"jobtrack/internal/notifier"
	"jobtrack/internal/repository"
	"jobtrack/internal/service"
	"jobtrack/internal/websocket"
	"jobtrack/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Job & Task Workflow API
// @version         1.0
// @description     Task tracking for a manufacturing order pipeline with status-driven auto-task generation.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "postgres")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Status flow table: built-in pipeline, optionally overridden from YAML.
	flow := workflow.Default()
	if path := os.Getenv("FLOW_TABLE_PATH"); path != "" {
		flow, err = workflow.Load(path)
		if err != nil {
			log.Fatalf("Failed to load flow table: %v", err)
		}
		log.Printf("Loaded flow table from %s (%d statuses)", path, len(flow.Statuses()))
	}

	// WebSocket hub for realtime workflow events
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Notification dispatch: websocket always, SMTP when configured.
	dispatch := notifier.Multi{notifier.NewHubDispatcher(wsHub)}
	if smtpHost := os.Getenv("SMTP_HOST"); smtpHost != "" {
		dispatch = append(dispatch, notifier.NewSMTPDispatcher(notifier.SMTPConfig{
			Host:     smtpHost,
			Port:     envOr("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("SMTP_FROM", "noreply@localhost"),
		}))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewJobRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txm := repository.NewTransactionManager(db)

	// Workflow engine + services
	propagator := service.NewPropagator(db, jobRepo, taskRepo, userRepo, auditRepo, flow)
	userService := service.NewUserService(userRepo)
	jobService := service.NewJobService(jobRepo, txm, propagator, dispatch)
	taskService := service.NewTaskService(taskRepo, userRepo, jobRepo, auditRepo, txm, propagator, dispatch)
	auditService := service.NewAuditService(auditRepo)

	// Overdue-task digest, fire-and-forget
	digest := notifier.NewDigest(taskRepo, dispatch, 24*time.Hour)
	go digest.Run(context.Background())

	// Handlers
	userHandler := handler.NewUserHandler(userService)
	jobHandler := handler.NewJobHandler(jobService)
	taskHandler := handler.NewTaskHandler(taskService)
	auditHandler := handler.NewAuditHandler(auditService)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Rate limiter: injected, token bucket per client identity
	limiter := middleware.NewRateLimiter(10, 30)
	router.Use(limiter.Middleware())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// API routes
	userHandler.RegisterRoutes(router.Group(""))
	jobHandler.RegisterRoutes(router.Group(""))
	taskHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")
	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
