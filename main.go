package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"codraft/config/database"
	"codraft/internal/bus"
	"codraft/internal/cache"
	"codraft/internal/document/repository"
	"codraft/internal/document/service"
	"codraft/internal/presence"
	"codraft/pkg/logger"
	"codraft/router"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}
	logger.Init()
	defer logger.Log.Sync()

	db := database.Connect()
	defer db.Close()

	var docCache cache.DocumentCache = cache.NewNop()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		docCache = cache.NewRedisDocumentCache(addr)
		logger.Sugar.Infof("Document cache enabled (redis at %s)", addr)
	}

	// Core sync state lives for the life of the process: the topic bus and
	// the presence registry hold the only shared mutable state.
	eventBus := bus.New()
	registry := presence.NewRegistry()

	svc := service.NewDocumentService(repository.NewDocumentRepository(db), eventBus, registry, docCache)
	svc.UpdateRequiresOwner = os.Getenv("UPDATE_REQUIRES_OWNER") == "true"
	if svc.UpdateRequiresOwner {
		logger.Sugar.Info("Ownership enforcement on document updates is enabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Sugar.Infof("Backend listening on :%s", port)
	if err := http.ListenAndServe(":"+port, router.Setup(svc)); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
