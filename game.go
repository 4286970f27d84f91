package main

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mlange-42/ark/ecs"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	TickRate     = 20 // authoritative ticks per second
	TickDuration = time.Second / TickRate

	maxPlayersPerRoom     = 16
	maxProjectilesPerRoom = 256

	spawnSpread   = 200.0 // m, half extent of the spawn area
	playerMaxHP   = 100.0
)

// Broadcaster is the outbound side of a connected client.
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// PlayerMeta is the per-session record that is not replicated every tick:
// identity, the vehicle definition captured at join time, and the
// per-ammo-type loadout.
type PlayerMeta struct {
	SessionID    string
	Username     string
	Entity       ecs.Entity
	Vehicle      VehicleDefinition
	Loadout      map[string]int
	AmmoCapacity int
	FireCooldown float64 // seconds between shots
	JoinedAt     time.Time
	Tally        BattleTally
}

// BattleTally accumulates one session's combat numbers. It is handed
// back when the player leaves so the session boundary can fold it into
// the account's lifetime stats.
type BattleTally struct {
	Kills       int
	Deaths      int
	ShotsFired  int
	ShotsOnTank int
	Playtime    float64 // seconds
}

// ProjectileMeta is the telemetry record for one shell, keyed by a
// generated id distinct from the entity id. It captures the ammo stats
// at fire time, so a catalog hot-reload never touches shells in flight.
type ProjectileMeta struct {
	ID             string
	Entity         ecs.Entity
	AmmoName       string
	ShooterSession string
	Shooter        ecs.Entity
	Damage         float64
	Penetration    float64
	Explosion      float64
	SpawnPos       r3.Vec
	LastPos        r3.Vec
	LastVel        r3.Vec
	Distance       float64
	FlightTime     float64 // s
}

// Game is the authoritative simulation for one room: the entity store,
// the physics world, and all per-tick systems. Everything under the
// mutex runs strictly sequentially within a tick; rooms are independent
// and may run in parallel.
type Game struct {
	mu       sync.Mutex
	world    *ecs.World
	phys     *PhysicsWorld
	catalog  *CatalogProvider
	recorder *CombatRecorder

	players         map[string]*PlayerMeta
	sessionByEntity map[ecs.Entity]string
	projMeta        map[string]*ProjectileMeta
	shellByEntity   map[ecs.Entity]string
	bodies          map[ecs.Entity]*Body

	// Per-entity mailboxes, applied atomically at the start of the next
	// tick. Latest write wins; there is no queue.
	pendingTargets map[string]TargetUpdate
	pendingFires   map[ecs.Entity]string

	// Per-tick idempotency guard for projectile destruction.
	destroyedThisTick map[string]struct{}

	clients    map[string]Broadcaster
	replicated *ReplicatedState

	tick    uint64
	running bool
	stop    chan struct{}

	playerMapper *ecs.Map7[Transform, TargetTransform, Velocity, Health, AmmoState, Cooldown, TankStats]
	projMapper   *ecs.Map3[Transform, Velocity, ProjectileKinematics]
	playerTagMap *ecs.Map1[PlayerTag]
	projTagMap   *ecs.Map1[ProjectileTag]

	transformMap *ecs.Map1[Transform]
	targetMap    *ecs.Map1[TargetTransform]
	healthMap    *ecs.Map1[Health]
	ammoMap      *ecs.Map1[AmmoState]
	cooldownMap  *ecs.Map1[Cooldown]
	statsMap     *ecs.Map1[TankStats]

	vehicleFilter  *ecs.Filter4[Transform, TargetTransform, Velocity, TankStats]
	snapFilter     *ecs.Filter4[Transform, Velocity, Health, AmmoState]
	cooldownFilter *ecs.Filter1[Cooldown]
	projFilter     *ecs.Filter3[Transform, Velocity, ProjectileKinematics]
}

// NewGame creates a room simulation. The catalog is owned by the caller
// and may be shared across rooms; the recorder may be nil.
func NewGame(catalog *CatalogProvider, recorder *CombatRecorder) *Game {
	world := ecs.NewWorld()
	g := &Game{
		world:    world,
		phys:     NewPhysicsWorld(),
		catalog:  catalog,
		recorder: recorder,

		players:         make(map[string]*PlayerMeta),
		sessionByEntity: make(map[ecs.Entity]string),
		projMeta:        make(map[string]*ProjectileMeta),
		shellByEntity:   make(map[ecs.Entity]string),
		bodies:          make(map[ecs.Entity]*Body),

		pendingTargets:    make(map[string]TargetUpdate),
		pendingFires:      make(map[ecs.Entity]string),
		destroyedThisTick: make(map[string]struct{}),

		clients:    make(map[string]Broadcaster),
		replicated: NewReplicatedState(),
		stop:       make(chan struct{}),

		playerMapper: ecs.NewMap7[Transform, TargetTransform, Velocity, Health, AmmoState, Cooldown, TankStats](world),
		projMapper:   ecs.NewMap3[Transform, Velocity, ProjectileKinematics](world),
		playerTagMap: ecs.NewMap1[PlayerTag](world),
		projTagMap:   ecs.NewMap1[ProjectileTag](world),

		transformMap: ecs.NewMap1[Transform](world),
		targetMap:    ecs.NewMap1[TargetTransform](world),
		healthMap:    ecs.NewMap1[Health](world),
		ammoMap:      ecs.NewMap1[AmmoState](world),
		cooldownMap:  ecs.NewMap1[Cooldown](world),
		statsMap:     ecs.NewMap1[TankStats](world),

		vehicleFilter:  ecs.NewFilter4[Transform, TargetTransform, Velocity, TankStats](world),
		snapFilter:     ecs.NewFilter4[Transform, Velocity, Health, AmmoState](world),
		cooldownFilter: ecs.NewFilter1[Cooldown](world),
		projFilter:     ecs.NewFilter3[Transform, Velocity, ProjectileKinematics](world),
	}
	return g
}

// Run drives the simulation at the fixed tick cadence and broadcasts
// results until Stop is called.
func (g *Game) Run() {
	g.mu.Lock()
	g.running = true
	g.mu.Unlock()

	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	dt := TickDuration.Seconds()
	for {
		select {
		case <-ticker.C:
			res := g.Step(dt)
			g.broadcastEvents(res)
			g.broadcastState()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the room loop.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.running = false
		close(g.stop)
	}
}

// AddPlayer spawns a vehicle entity, physics body and metadata record
// for a session. Idempotent: a second join for the same session is a
// no-op. The loadout is sanitized and the aggregate ammo counter clamped
// to the vehicle's capacity.
func (g *Game) AddPlayer(sessionID, username string, def VehicleDefinition, loadout map[string]int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.players[sessionID]; exists {
		return true
	}
	if len(g.players) >= maxPlayersPerRoom {
		return false
	}

	stats := ResolveVehicleStats(def)
	capacity := ResolveAmmoCapacity(def)

	clean := make(map[string]int, len(loadout))
	total := 0
	for name, count := range loadout {
		if count < 0 {
			count = 0
		}
		clean[name] = count
		total += count
	}
	if total > capacity {
		total = capacity
	}

	x := -spawnSpread + rand.Float64()*2*spawnSpread
	z := -spawnSpread + rand.Float64()*2*spawnSpread
	ground, _ := g.phys.ElevationAt(x, z)
	y := ground + stats.BodyHeight/2

	tf := Transform{X: x, Y: y, Z: z}
	target := TargetTransform{X: x, Y: y, Z: z}
	vel := Velocity{}
	health := Health{Current: playerMaxHP, Max: playerMaxHP}
	ammo := AmmoState{Capacity: capacity, Remaining: total}
	cd := Cooldown{}

	entity := g.playerMapper.NewEntity(&tf, &target, &vel, &health, &ammo, &cd, &stats)
	g.playerTagMap.Add(entity, &PlayerTag{})

	body := g.phys.CreateTankBody(entity, r3.Vec{X: stats.BodyWidth, Y: stats.BodyHeight, Z: stats.BodyLength}, stats.Mass)
	body.Pos = r3.Vec{X: x, Y: y, Z: z}
	g.bodies[entity] = body

	g.players[sessionID] = &PlayerMeta{
		SessionID:    sessionID,
		Username:     username,
		Entity:       entity,
		Vehicle:      def,
		Loadout:      clean,
		AmmoCapacity: capacity,
		FireCooldown: ResolveFireCooldown(def),
		JoinedAt:     time.Now(),
	}
	g.sessionByEntity[entity] = sessionID

	if g.recorder != nil {
		g.recorder.TrackSessionStart(sessionID, username, def.Name)
	}
	log.Info().Str("session", sessionID).Str("vehicle", def.Name).Msg("player joined room")
	return true
}

// RemovePlayer synchronously destroys the entity, its physics body and
// its metadata entry, so the next snapshot never sees a dangling player.
// The returned tally holds the session's final combat totals; the bool
// reports whether a player was actually removed.
func (g *Game) RemovePlayer(sessionID string) (BattleTally, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	meta, ok := g.players[sessionID]
	if !ok {
		delete(g.clients, sessionID)
		return BattleTally{}, false
	}
	entity := meta.Entity

	if body, ok := g.bodies[entity]; ok {
		g.phys.RemoveBody(body)
		delete(g.bodies, entity)
	}
	delete(g.pendingFires, entity)
	delete(g.pendingTargets, sessionID)
	delete(g.sessionByEntity, entity)
	delete(g.players, sessionID)
	delete(g.clients, sessionID)
	if g.world.Alive(entity) {
		g.world.RemoveEntity(entity)
	}

	tally := meta.Tally
	tally.Playtime = time.Since(meta.JoinedAt).Seconds()
	if g.recorder != nil {
		g.recorder.TrackSessionEnd(sessionID, tally)
	}
	log.Info().Str("session", sessionID).Int("kills", tally.Kills).Msg("player left room")
	return tally, true
}

// SetClient associates an outbound connection with a session.
func (g *Game) SetClient(sessionID string, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[sessionID] = client
}

// HasPlayer reports whether a session has a live vehicle in this room.
func (g *Game) HasPlayer(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.players[sessionID]
	return ok
}

// PlayerCount returns the number of players in the room.
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// UpdateTarget buffers a partial target-transform write for the next
// tick. Only the latest write per session wins.
func (g *Game) UpdateTarget(sessionID string, upd TargetUpdate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.players[sessionID]; !ok {
		return
	}
	g.pendingTargets[sessionID] = upd
}

// SetTerrain rebuilds the terrain collision geometry. Vehicles are
// re-seated on the new surface on the next tick; in-flight shells are
// not re-homed.
func (g *Game) SetTerrain(def *TerrainDefinition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phys.RebuildTerrain(def)
}

// Step advances one authoritative tick and returns everything the
// session boundary must broadcast. An unexpected panic inside a tick is
// caught here: the room logs it and keeps running with whatever partial
// result was built.
func (g *Game) Step(dt float64) (res StepResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint64("tick", g.tick).Msg("tick aborted")
		}
	}()

	g.tick++
	clear(g.destroyedThisTick)

	g.applyPendingTargets()
	g.tickCooldowns(dt)
	g.integrateVehicles(dt)

	contacts := g.phys.Step(dt)

	g.reconcileVehicles()
	g.updateProjectiles(dt)
	g.resolveContacts(contacts, &res)
	g.expireProjectiles(&res)
	g.resolvePendingFires()

	return res
}

// Tick returns the current tick counter.
func (g *Game) Tick() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tick
}

// broadcastEvents pushes explosion/damage/kill envelopes to every client
// in the room.
func (g *Game) broadcastEvents(res StepResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range res.Explosions {
		g.broadcastMsg(Envelope{T: MsgExplosion, Data: e})
	}
	for _, d := range res.Damage {
		g.broadcastMsg(Envelope{T: MsgDamage, Data: d})
	}
	for _, k := range res.Kills {
		g.broadcastMsg(Envelope{T: MsgKill, Data: k})
	}
}

// broadcastState synchronises the replicated snapshot and ships it as a
// msgpack binary frame, with metadata deltas as JSON envelopes.
func (g *Game) broadcastState() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.synchroniseLocked(g.replicated)

	for _, sid := range g.replicated.Added {
		if meta, ok := g.replicated.Players[sid]; ok {
			g.broadcastMsg(Envelope{T: MsgPlayerMeta, Data: meta})
		}
	}
	for _, sid := range g.replicated.Removed {
		g.broadcastMsg(Envelope{T: MsgPlayerGone, Data: map[string]string{"sid": sid}})
	}

	frame := StateFrame{
		Tick:        g.replicated.Tick,
		Players:     g.replicated.PlayerBuffer,
		Projectiles: g.replicated.ProjectileBuffer,
	}
	data, err := msgpack.Marshal(&frame)
	if err != nil {
		log.Error().Err(err).Msg("state frame marshal failed")
		return
	}
	for _, client := range g.clients {
		client.SendBinary(data)
	}
}

// broadcastMsg sends a JSON envelope to all clients. Callers hold g.mu.
func (g *Game) broadcastMsg(msg Envelope) {
	for _, client := range g.clients {
		client.SendJSON(msg)
	}
}
