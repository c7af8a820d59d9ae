// Command server runs the hosted study-log document API.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/okabe/studylog/internal/auth"
	"github.com/okabe/studylog/internal/server"
	"github.com/okabe/studylog/internal/storage/sqlite"
	"github.com/okabe/studylog/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/studylog.db")
	port := getEnv("PORT", "8080")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	tokenTTL := 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			slog.Error("Invalid TOKEN_TTL", "value", raw, "error", err)
			os.Exit(1)
		}
		tokenTTL = parsed
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	srv := server.New(store, auth.NewJWTManager(secret, tokenTTL))

	// h2c allows HTTP/2 without TLS for local and reverse-proxied setups.
	handler := h2c.NewHandler(srv.Handler(), &http2.Server{})

	addr := fmt.Sprintf(":%s", port)
	slog.Info("Study-log server starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
