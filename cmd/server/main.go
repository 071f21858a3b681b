package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"core/internal/config"
	"core/internal/handler"
	"core/internal/repository"
	"core/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Print version info
	log.Printf("ListingMatcher")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Initialize OpenAI client
	aiClient := service.NewOpenAIClient(&cfg.OpenAI)
	if cfg.OpenAI.Enabled {
		log.Printf("✅ OpenAI client initialized")
		log.Printf("   - API Base: %s", cfg.OpenAI.APIBase)
		log.Printf("   - Model: %s", cfg.OpenAI.Model)
		log.Printf("   - Embedding model: %s", cfg.OpenAI.EmbeddingModel)
		log.Printf("   - Max rounds: %d", cfg.Matcher.MaxRounds)
	} else {
		log.Println("⚠️  OpenAI is disabled - /api/v1/match will return 500")
		log.Println("   Set OPENAI_API_KEY environment variable to enable matching")
	}

	if cfg.Serper.APIKey == "" {
		log.Println("⚠️  SERPER_API_KEY is not set - web_search degrades to a fallback result")
	} else {
		log.Println("✅ Serper search provider configured")
	}

	// Initialize optional match archive
	var archive *repository.MatchArchive
	if cfg.PostgreSQL.Enabled {
		archive, err = repository.NewMatchArchive(
			cfg.PostgreSQL.DSN,
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer archive.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := archive.EnsureSchema(ctx, cfg.OpenAI.EmbeddingDimensions); err != nil {
			cancel()
			log.Fatalf("Failed to ensure archive schema: %v", err)
		}
		cancel()
		log.Println("✅ Connected to PostgreSQL match archive")
	} else {
		log.Println("⚠️  Match archive is disabled - set DATABASE_URL to enable it")
	}

	// Initialize services
	tools := service.NewToolExecutor(&cfg.Serper, &cfg.Fetch)
	matcher := service.NewMatcherService(aiClient, tools, archive, &cfg.Matcher)

	log.Println("✅ Services initialized")

	// Initialize handlers
	matchHandler := handler.NewMatchHandler(matcher, cfg.Matcher.DefaultLimit, cfg.Matcher.MaxLimit, cfg.OpenAI.Enabled)
	feedbackHandler := handler.NewFeedbackHandler(archive)
	historyHandler := handler.NewHistoryHandler(archive)

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "listing-matcher",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		// Match endpoints
		apiV1.POST("/match", matchHandler.Match)
		apiV1.POST("/match/stream", matchHandler.MatchStream) // Streaming match progress

		// Archive endpoints
		apiV1.GET("/matches/recent", historyHandler.Recent)
		apiV1.GET("/matches/:match_id/listings", historyHandler.Listings)
		apiV1.POST("/feedback", feedbackHandler.Submit)
	}

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📝 API: http://localhost:%d/api/v1/match", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	log.Println("✅ Server stopped")
}
