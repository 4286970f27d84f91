package main

// PlayerMetaSnapshot is the slow-changing per-player record replicated
// once on join (and on reconnect), not every tick.
type PlayerMetaSnapshot struct {
	SessionID string            `json:"sid" msgpack:"sid"`
	Username  string            `json:"name" msgpack:"name"`
	Vehicle   VehicleDefinition `json:"vehicle" msgpack:"vehicle"`
	MaxHP     float64           `json:"maxhp" msgpack:"maxhp"`
}

// PlayerBuffer holds the per-tick player runtime state in columnar form:
// one slice per field, index-aligned, so a frame packs tightly and the
// client can decode without per-player allocations.
type PlayerBuffer struct {
	SIDs      []string  `msgpack:"sid"`
	X         []float64 `msgpack:"x"`
	Y         []float64 `msgpack:"y"`
	Z         []float64 `msgpack:"z"`
	Yaw       []float64 `msgpack:"yaw"`
	TurretYaw []float64 `msgpack:"tyaw"`
	GunPitch  []float64 `msgpack:"gp"`
	VX        []float64 `msgpack:"vx"`
	VY        []float64 `msgpack:"vy"`
	VZ        []float64 `msgpack:"vz"`
	HP        []float64 `msgpack:"hp"`
	Ammo      []int     `msgpack:"ammo"`
}

func (b *PlayerBuffer) reset() {
	b.SIDs = b.SIDs[:0]
	b.X, b.Y, b.Z = b.X[:0], b.Y[:0], b.Z[:0]
	b.Yaw, b.TurretYaw, b.GunPitch = b.Yaw[:0], b.TurretYaw[:0], b.GunPitch[:0]
	b.VX, b.VY, b.VZ = b.VX[:0], b.VY[:0], b.VZ[:0]
	b.HP = b.HP[:0]
	b.Ammo = b.Ammo[:0]
}

// ProjectileBuffer is the columnar per-tick shell state.
type ProjectileBuffer struct {
	IDs []string  `msgpack:"id"`
	X   []float64 `msgpack:"x"`
	Y   []float64 `msgpack:"y"`
	Z   []float64 `msgpack:"z"`
	VX  []float64 `msgpack:"vx"`
	VY  []float64 `msgpack:"vy"`
	VZ  []float64 `msgpack:"vz"`
}

func (b *ProjectileBuffer) reset() {
	b.IDs = b.IDs[:0]
	b.X, b.Y, b.Z = b.X[:0], b.Y[:0], b.Z[:0]
	b.VX, b.VY, b.VZ = b.VX[:0], b.VY[:0], b.VZ[:0]
}

// StateFrame is the msgpack binary snapshot shipped every tick.
type StateFrame struct {
	Tick        uint64           `msgpack:"t"`
	Players     PlayerBuffer     `msgpack:"p"`
	Projectiles ProjectileBuffer `msgpack:"s"`
}

// ReplicatedState is the externally-owned snapshot the simulation writes
// into once per tick. Buffers are reused across ticks; the Added and
// Removed slices report metadata churn since the previous synchronise so
// the boundary only ships metadata deltas.
type ReplicatedState struct {
	Tick uint64

	Players          map[string]PlayerMetaSnapshot
	PlayerBuffer     PlayerBuffer
	ProjectileBuffer ProjectileBuffer

	Added   []string
	Removed []string

	known map[string]struct{}
}

func NewReplicatedState() *ReplicatedState {
	return &ReplicatedState{
		Players: make(map[string]PlayerMetaSnapshot),
		known:   make(map[string]struct{}),
	}
}

// SynchroniseState writes the current simulation state into rs. The
// caller owns rs; the simulation only touches it inside this call.
func (g *Game) SynchroniseState(rs *ReplicatedState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.synchroniseLocked(rs)
}

func (g *Game) synchroniseLocked(rs *ReplicatedState) {
	rs.Tick = g.tick
	rs.Added = rs.Added[:0]
	rs.Removed = rs.Removed[:0]

	// Reconcile the metadata map against the live player set.
	for sid, meta := range g.players {
		if _, ok := rs.known[sid]; !ok {
			rs.known[sid] = struct{}{}
			rs.Players[sid] = PlayerMetaSnapshot{
				SessionID: sid,
				Username:  meta.Username,
				Vehicle:   meta.Vehicle,
				MaxHP:     playerMaxHP,
			}
			rs.Added = append(rs.Added, sid)
		}
	}
	for sid := range rs.known {
		if _, ok := g.players[sid]; !ok {
			delete(rs.known, sid)
			delete(rs.Players, sid)
			rs.Removed = append(rs.Removed, sid)
		}
	}

	// Runtime buffers are rebuilt from scratch every tick.
	pb := &rs.PlayerBuffer
	pb.reset()
	query := g.snapFilter.Query()
	for query.Next() {
		tf, vel, health, ammo := query.Get()
		entity := query.Entity()
		sid, ok := g.sessionByEntity[entity]
		if !ok {
			continue
		}
		pb.SIDs = append(pb.SIDs, sid)
		pb.X = append(pb.X, tf.X)
		pb.Y = append(pb.Y, tf.Y)
		pb.Z = append(pb.Z, tf.Z)
		pb.Yaw = append(pb.Yaw, tf.Yaw)
		pb.TurretYaw = append(pb.TurretYaw, tf.TurretYaw)
		pb.GunPitch = append(pb.GunPitch, tf.GunPitch)
		pb.VX = append(pb.VX, vel.VX)
		pb.VY = append(pb.VY, vel.VY)
		pb.VZ = append(pb.VZ, vel.VZ)
		pb.HP = append(pb.HP, health.Current)
		pb.Ammo = append(pb.Ammo, ammo.Remaining)
	}

	sb := &rs.ProjectileBuffer
	sb.reset()
	shells := g.projFilter.Query()
	for shells.Next() {
		tf, vel, _ := shells.Get()
		id, ok := g.shellByEntity[shells.Entity()]
		if !ok {
			continue
		}
		sb.IDs = append(sb.IDs, id)
		sb.X = append(sb.X, tf.X)
		sb.Y = append(sb.Y, tf.Y)
		sb.Z = append(sb.Z, tf.Z)
		sb.VX = append(sb.VX, vel.VX)
		sb.VY = append(sb.VY, vel.VY)
		sb.VZ = append(sb.VZ, vel.VZ)
	}
}
