// Package main is the entry point for the Soundtide playback backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/soundtide/soundtide-backend/internal/config"
	"github.com/soundtide/soundtide-backend/internal/domain/player"
	"github.com/soundtide/soundtide-backend/internal/domain/upload"
	"github.com/soundtide/soundtide-backend/internal/infra/api"
	"github.com/soundtide/soundtide-backend/internal/infra/engine"
	"github.com/soundtide/soundtide-backend/internal/transport/socketio"
	"github.com/soundtide/soundtide-backend/internal/version"
)

func main() {
	cfg := config.Load()

	// Command line flags override the environment
	port := flag.String("port", cfg.Port, "HTTP server port")
	mpdHost := flag.String("mpd-host", cfg.EngineHost, "MPD host")
	mpdPort := flag.Int("mpd-port", cfg.EnginePort, "MPD port")
	mpdPassword := flag.String("mpd-password", cfg.EnginePassword, "MPD password")
	apiBaseURL := flag.String("api-base-url", cfg.APIBaseURL, "Catalog API base URL")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Playback & Upload Backend")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", *port).
		Str("mpd_host", *mpdHost).
		Int("mpd_port", *mpdPort).
		Str("api_base_url", *apiBaseURL).
		Bool("token_set", cfg.APIToken != "").
		Msg("Configuration")

	if cfg.APIToken == "" {
		log.Warn().Msg("No API token set - likes, play counts and uploads will be refused")
	}

	// Create the audio engine client
	eng := engine.NewMPD(*mpdHost, *mpdPort, *mpdPassword)
	if err := eng.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MPD")
	}
	defer eng.Close()
	log.Info().Msg("MPD connection verified")

	// Create services
	apiClient := api.NewClient(*apiBaseURL, cfg.APIToken)
	session := player.NewSession(eng, apiClient)
	uploads := upload.NewCoordinator(apiClient)

	// Create Socket.io server
	socketServer, err := socketio.NewServer(session, uploads, cfg.MaxExternalClients)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One-time engine setup plus event and progress loops
	session.Start(ctx)

	// Setup HTTP server
	mux := http.NewServeMux()

	// Socket.io endpoint
	mux.Handle("/socket.io/", socketServer)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := eng.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","engine":"disconnected"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","engine":"connected"}`))
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.GetInfo())
	})

	// Basic state endpoint (REST fallback)
	mux.HandleFunc("/api/v1/getState", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(session.Snapshot())
	})

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+*port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}
