package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("api encode")
	}
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, catalog *CatalogProvider, recorder *CombatRecorder) *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("ws upgrade")
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	// Vehicle roster for the garage screen
	mux.HandleFunc("/api/vehicles", func(w http.ResponseWriter, r *http.Request) {
		names := catalog.VehicleNames()
		vehicles := make([]VehicleDefinition, 0, len(names))
		for _, name := range names {
			if v, ok := catalog.Vehicle(name); ok {
				vehicles = append(vehicles, v)
			}
		}
		writeJSON(w, vehicles)
	})

	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		if hub.db == nil {
			http.Error(w, "no database", http.StatusServiceUnavailable)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		entries, err := hub.db.GetLeaderboard(r.URL.Query().Get("by"), limit)
		if err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, entries)
	})

	mux.HandleFunc("/api/stats/kills", func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			http.Error(w, "no recorder", http.StatusServiceUnavailable)
			return
		}
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))
		if days <= 0 {
			days = 7
		}
		counts, err := recorder.KillCounts(days)
		if err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, counts)
	})

	mux.HandleFunc("/api/stats/ammo", func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			http.Error(w, "no recorder", http.StatusServiceUnavailable)
			return
		}
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))
		if days <= 0 {
			days = 7
		}
		usage, err := recorder.AmmoUsage(days)
		if err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, usage)
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"ok":    true,
			"conns": hub.TotalConns(),
		})
	})

	return mux
}
