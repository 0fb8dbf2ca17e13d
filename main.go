package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/handlers"
	"genfity-wa-autoreply/middleware"
	"genfity-wa-autoreply/services"
	"genfity-wa-autoreply/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize database
	database.InitDatabase()

	// Start usage monitor in background
	log.Println("🔍 Starting usage monitor...")
	go services.MonitorUsage()

	// Shared pipeline for the sweep endpoint; the sweeper builds its own
	pipeline, err := services.NewPipeline()
	if err != nil {
		log.Fatalf("❌ Failed to initialize pipeline: %v", err)
	}

	// Start batch sweeper in background with graceful shutdown support
	sweeper, err := worker.NewSweeper()
	if err != nil {
		log.Fatalf("❌ Failed to initialize batch sweeper: %v", err)
	}
	go func() {
		log.Println("Starting batch sweeper...")
		sweeper.Start()
	}()

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Webhook-Secret")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Home page
	router.GET("/", handlers.HomePage)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// Inbound message webhook - receives chat events from the WA provider
	router.POST("/webhook/inbound", handlers.HandleInboundWebhook)

	// Async action result callback (wait_for_webhook response mode)
	router.POST("/webhook/action-response", handlers.HandleActionResponse)

	// Public cron job endpoint for the batching sweep (no authentication required)
	router.GET("/batch/cron/process", handlers.BatchSweepCronJob(pipeline))

	// Tenant-facing action configuration endpoints
	actions := router.Group("/actions")
	actions.Use(middleware.JWTMiddleware())
	{
		actions.GET("", handlers.ListActionConfigs)
		actions.POST("", handlers.CreateActionConfig)
		actions.DELETE("/:id", handlers.DeleteActionConfig)
		actions.GET("/:id/executions", handlers.GetExecutionLog)
	}

	// Get port from environment or default to 8070
	port := os.Getenv("PORT")
	if port == "" {
		port = "8070"
	}

	// Setup HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("🛑 Shutting down server...")

	// Stop batch sweeper first
	log.Println("🤖 Stopping batch sweeper...")
	sweeper.Stop()

	// Give a deadline for HTTP server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server exited gracefully")
}
