package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	defer db.Close()

	catalog := NewCatalogProvider()
	if cfg.CatalogDir != "" {
		if err := catalog.LoadDir(cfg.CatalogDir); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.CatalogDir).Msg("catalog load failed")
		}
		log.Info().Str("dir", cfg.CatalogDir).Msg("catalog loaded")
	}

	recorder := NewCombatRecorder(db)
	defer recorder.Stop()

	rooms := NewRoomManager(catalog, recorder)
	hub := NewHub(db, rooms)
	go hub.Run()

	mux := SetupRoutes(hub, catalog, recorder)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	<-stop
	log.Info().Msg("shutting down")
	rooms.StopAll()
	server.Close()
}
