package main

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Combat event types persisted for after-action analysis.
const (
	EvtShellKill      = "shell_kill"
	EvtShellExplosion = "shell_explosion"
	EvtSessionStart   = "session_start"
	EvtSessionEnd     = "session_end"
)

// CombatEvent is a single trackable combat record.
type CombatEvent struct {
	Type      string
	SessionID string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// CombatRecorder persists combat events with batched background writes.
// Tracking never blocks the tick loop: when the queue is full, events
// are dropped.
type CombatRecorder struct {
	db     *DB
	events chan CombatEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewCombatRecorder creates and starts the background writer. A nil db
// yields a recorder that counts and drops.
func NewCombatRecorder(db *DB) *CombatRecorder {
	r := &CombatRecorder{
		db:     db,
		events: make(chan CombatEvent, 1024),
		stop:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writer()
	return r
}

// Track enqueues an event for async persistence (non-blocking).
func (r *CombatRecorder) Track(evtType, sessionID, data string) {
	select {
	case r.events <- CombatEvent{
		Type:      evtType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Queue full. Dropping beats stalling the tick.
	}
}

// TrackKill records a confirmed kill with shot distance telemetry.
func (r *CombatRecorder) TrackKill(shooterSID, victimSID, ammoName string, distance float64) {
	data, _ := json.Marshal(map[string]interface{}{
		"victim": victimSID,
		"ammo":   ammoName,
		"dist":   distance,
	})
	r.Track(EvtShellKill, shooterSID, string(data))
}

// TrackExplosion records a shell's end of life with its flight telemetry.
func (r *CombatRecorder) TrackExplosion(meta *ProjectileMeta, hitKind string) {
	data, _ := json.Marshal(map[string]interface{}{
		"ammo": meta.AmmoName,
		"hit":  hitKind,
		"dist": meta.Distance,
		"time": meta.FlightTime,
	})
	r.Track(EvtShellExplosion, meta.ShooterSession, string(data))
}

// TrackSessionStart records a player entering a battle.
func (r *CombatRecorder) TrackSessionStart(sessionID, username, vehicle string) {
	data, _ := json.Marshal(map[string]interface{}{
		"user":    username,
		"vehicle": vehicle,
	})
	r.Track(EvtSessionStart, sessionID, string(data))
}

// TrackSessionEnd records a player leaving with their battle totals.
func (r *CombatRecorder) TrackSessionEnd(sessionID string, tally BattleTally) {
	data, _ := json.Marshal(map[string]interface{}{
		"kills":    tally.Kills,
		"deaths":   tally.Deaths,
		"shots":    tally.ShotsFired,
		"on_tank":  tally.ShotsOnTank,
		"playtime": tally.Playtime,
	})
	r.Track(EvtSessionEnd, sessionID, string(data))
}

// Stop gracefully shuts down the writer, flushing what is queued.
func (r *CombatRecorder) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *CombatRecorder) writer() {
	defer r.wg.Done()

	batch := make([]CombatEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-r.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stop:
			close(r.events)
			for evt := range r.events {
				batch = append(batch, evt)
			}
			if len(batch) > 0 {
				r.flush(batch)
			}
			return
		}
	}
}

func (r *CombatRecorder) flush(events []CombatEvent) {
	if r.db == nil || len(events) == 0 {
		return
	}
	tx, err := r.db.conn.Begin()
	if err != nil {
		log.Error().Err(err).Msg("combat recorder: begin tx")
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO combat_events (event_type, session_id, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		log.Error().Err(err).Msg("combat recorder: prepare")
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		sid := sql.NullString{String: evt.SessionID, Valid: evt.SessionID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, sid, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Error().Err(err).Msg("combat recorder: insert")
		}
	}
	tx.Commit()
}

// KillCounts returns kills per shooter session over the last N days.
func (r *CombatRecorder) KillCounts(days int) (map[string]int, error) {
	if r.db == nil {
		return nil, nil
	}
	rows, err := r.db.conn.Query(`
		SELECT session_id, COUNT(*) FROM combat_events
		WHERE event_type = ? AND session_id IS NOT NULL
			AND created_at >= date('now', '-' || ? || ' days')
		GROUP BY session_id ORDER BY COUNT(*) DESC
	`, EvtShellKill, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var sid string
		var count int
		if err := rows.Scan(&sid, &count); err != nil {
			continue
		}
		result[sid] = count
	}
	return result, rows.Err()
}

// AmmoUsage returns shell expenditure per ammo type over the last N days.
func (r *CombatRecorder) AmmoUsage(days int) (map[string]int, error) {
	if r.db == nil {
		return nil, nil
	}
	rows, err := r.db.conn.Query(`
		SELECT COALESCE(json_extract(data, '$.ammo'), 'unknown') as ammo, COUNT(*)
		FROM combat_events
		WHERE event_type = ? AND json_valid(data)
			AND created_at >= date('now', '-' || ? || ' days')
		GROUP BY ammo ORDER BY COUNT(*) DESC
	`, EvtShellExplosion, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var ammo string
		var count int
		if err := rows.Scan(&ammo, &count); err != nil {
			continue
		}
		result[ammo] = count
	}
	return result, rows.Err()
}
