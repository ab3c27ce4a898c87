package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptcrm/backend/internal/application/services"
	"github.com/promptcrm/backend/internal/bootstrap"
	"github.com/promptcrm/backend/internal/infrastructure/database"
	"github.com/promptcrm/backend/internal/infrastructure/llm"
	"github.com/promptcrm/backend/internal/interfaces/rest"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Println("📦 Loaded environment from .env")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	// Initialize database connection
	conn, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := conn.DB()
	log.Println("✅ Database connection established")

	// Create the system tables and the shared updated_at trigger function
	if err := bootstrap.InitializeSystemTables(context.Background(), db); err != nil {
		log.Fatalf("Failed to initialize system tables: %v", err)
	}

	// Initialize model client
	model, err := llm.NewAnthropicClient()
	if err != nil {
		log.Fatalf("Failed to initialize model client: %v", err)
	}

	// Initialize service manager
	svcMgr := services.NewServiceManager(db, model)

	// Start the expired-lock sweeper
	if err := svcMgr.SchedulerService.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	router := rest.SetupRouter(svcMgr)

	log.Println("\n═══════════════════════════════════════════════════════════════════════════")
	log.Println("🚀 PromptCRM Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════════════════════════════════")
	log.Printf("\n📍 Server:         http://localhost:%s", port)
	log.Printf("🔐 Auth API:       http://localhost:%s/api/auth", port)
	log.Printf("📐 Schema API:     http://localhost:%s/api/projects/:projectId/schema", port)
	log.Printf("💚 Health check:   http://localhost:%s/health\n", port)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	svcMgr.SchedulerService.Stop()

	// In-flight requests get 5 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	if err := conn.Close(); err != nil {
		log.Printf("⚠️  Failed to close database: %v", err)
	}

	log.Println("Server exiting")
}
