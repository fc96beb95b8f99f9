package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YF-George/lobbysync/internal/config"
	"github.com/YF-George/lobbysync/internal/db"
	"github.com/YF-George/lobbysync/internal/lobby"
	"github.com/YF-George/lobbysync/internal/middleware"
	"github.com/YF-George/lobbysync/internal/persist"
	"github.com/YF-George/lobbysync/internal/room"
	"github.com/YF-George/lobbysync/internal/worker"
	"github.com/YF-George/lobbysync/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	db.SeedData()

	// Initialize the hot cache
	cache := redis.New(config.AppConfig.RedisAddress)
	defer cache.Close()

	// Background workers for audit appends, cache mirrors, persists
	pool := worker.NewPool(4)
	defer pool.Shutdown()

	// Initialize repository and services
	roomRepo := lobby.NewRepository(db.AppDb)
	lobbyService := lobby.NewService(roomRepo)
	gateway := persist.NewGateway(roomRepo, config.AppConfig.MaxStateBytes)

	// Room actor registry
	registry := room.NewRegistry(room.RegistryConfig{
		Gateway:         gateway,
		Cache:           cache,
		Loader:          lobbyService,
		Audit:           lobbyService,
		Pool:            pool,
		Scheduler:       room.NewClockScheduler(),
		PersistInterval: config.AppConfig.PersistInterval,
	})

	// Initialize handlers
	lobbyHandler := lobby.NewHandler(lobbyService, registry)
	syncHandler := persist.NewHandler(gateway, config.AppConfig.MaxStateBytes)
	wsHandler := room.NewWSHandler(registry)

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	// Room routes
	router.POST("/api/rooms", lobbyHandler.Create)
	router.GET("/api/rooms/:slug", lobbyHandler.Show)
	router.DELETE("/api/rooms/id/:id", lobbyHandler.Delete)
	router.GET("/api/rooms/id/:id/logs", lobbyHandler.ShowLogs)

	// Real-time collaboration
	router.GET("/api/rooms/id/:id/ws", wsHandler.Serve)

	// Persistence write endpoint for sibling services
	router.POST("/api/rooms/sync", middleware.InternalAuth(config.AppConfig.InternalSecret), syncHandler.Sync)

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", serverPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// flush live rooms to the durable store before the process exits
	registry.Shutdown(ctx)

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	log.Println("Server shutdown complete")
}
