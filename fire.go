package main

import (
	"math"

	"github.com/segmentio/ksuid"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Clearance kept between a depressed muzzle and the hull underside so
	// shells never spawn inside the ground. The barrel is shortened, not
	// the shot blocked; extreme depression just fires from closer in.
	muzzleGroundClearance = 0.2 // m

	shellRadius = 0.1   // m collider
	shellMass   = 7.0   // kg
)

// QueueFire records a fire intent for the next tick. At most one request
// is held per entity; a second request before the tick overwrites the
// first, so duplicate messages cannot double-fire.
func (g *Game) QueueFire(sessionID, ammoName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	meta, ok := g.players[sessionID]
	if !ok {
		return
	}
	g.pendingFires[meta.Entity] = ammoName
}

// resolvePendingFires drains the fire mailbox, validating and spawning at
// most one projectile per entity this tick.
func (g *Game) resolvePendingFires() {
	for entity, ammoName := range g.pendingFires {
		sid, ok := g.sessionByEntity[entity]
		if !ok {
			continue
		}
		g.fire(sid, ammoName)
	}
	clear(g.pendingFires)
}

// fire validates a single fire request and spawns the projectile. Every
// rejection is silent: no entity is created and no state changes.
func (g *Game) fire(sessionID, ammoName string) {
	meta, ok := g.players[sessionID]
	if !ok {
		return
	}
	entity := meta.Entity
	if !g.cooldownMap.HasAll(entity) || !g.ammoMap.HasAll(entity) {
		return
	}

	if len(g.projMeta) >= maxProjectilesPerRoom {
		return
	}

	cd := g.cooldownMap.Get(entity)
	if cd.Value > 0 {
		return
	}
	ammoDef, ok := g.catalog.Ammo(ammoName)
	if !ok {
		return
	}
	if meta.Loadout[ammoName] <= 0 {
		return
	}

	// Spend the round and refresh the aggregate counter.
	meta.Loadout[ammoName]--
	ammo := g.ammoMap.Get(entity)
	total := 0
	for _, n := range meta.Loadout {
		total += n
	}
	if total > ammo.Capacity {
		total = ammo.Capacity
	}
	ammo.Remaining = total

	cd.Value = meta.FireCooldown
	meta.Tally.ShotsFired++

	tf := g.transformMap.Get(entity)
	stats := g.statsMap.Get(entity)
	muzzle, dir := MuzzleTransform(tf, stats)
	g.spawnProjectile(meta, ammoDef, muzzle, r3.Scale(ammoDef.Speed, dir))
}

// MuzzleTransform computes the muzzle point and unit firing direction
// from the vehicle pose and geometry. The pivot sits at the vehicle's
// vertical center plus half the hull and turret heights; the muzzle is
// the pivot advanced along the firing direction by the (possibly
// shortened) barrel length, laterally offset by the turret's configured
// offset percentages.
func MuzzleTransform(tf *Transform, stats *TankStats) (r3.Vec, r3.Vec) {
	azimuth := tf.Yaw + tf.TurretYaw
	pitch := tf.GunPitch

	dir := r3.Vec{
		X: math.Sin(azimuth) * math.Cos(pitch),
		Y: math.Sin(pitch),
		Z: math.Cos(azimuth) * math.Cos(pitch),
	}

	pivot := r3.Vec{
		X: tf.X,
		Y: tf.Y + stats.BodyHeight/2 + stats.TurretHeight/2,
		Z: tf.Z,
	}

	// Lateral turret offsets, expressed as percentages of hull width and
	// length, applied along the turret's right and forward axes.
	rightX := math.Cos(azimuth)
	rightZ := -math.Sin(azimuth)
	offRight := stats.TurretOffsetXPercent / 100.0 * stats.BodyWidth
	offForward := stats.TurretOffsetYPercent / 100.0 * stats.BodyLength
	pivot.X += rightX*offRight + math.Sin(azimuth)*offForward
	pivot.Z += rightZ*offRight + math.Cos(azimuth)*offForward

	// Ground-clearance correction: when pitched downward, shorten the
	// effective barrel so the muzzle stays above the hull underside plus
	// a small margin. A visual compromise, kept so shells cannot spawn
	// below the floor at full depression.
	barrel := stats.BarrelLength
	if dir.Y < 0 {
		floor := tf.Y - stats.BodyHeight/2 + muzzleGroundClearance
		maxLen := (pivot.Y - floor) / -dir.Y
		if maxLen < 0 {
			maxLen = 0
		}
		if barrel > maxLen {
			barrel = maxLen
		}
	}

	muzzle := r3.Add(pivot, r3.Scale(barrel, dir))
	return muzzle, dir
}

// spawnProjectile creates the entity, physics body and metadata record
// for a shell. The three are destroyed together, atomically, whichever
// trigger fires first.
func (g *Game) spawnProjectile(shooter *PlayerMeta, ammo AmmoDefinition, pos, vel r3.Vec) {
	life := AmmoLifetime(ammo)
	tf := Transform{X: pos.X, Y: pos.Y, Z: pos.Z, Yaw: math.Atan2(vel.X, vel.Z)}
	velocity := Velocity{VX: vel.X, VY: vel.Y, VZ: vel.Z}
	kin := ProjectileKinematics{
		VX: vel.X, VY: vel.Y, VZ: vel.Z,
		LifeRemaining: life,
		Shooter:       shooter.Entity,
	}
	entity := g.projMapper.NewEntity(&tf, &velocity, &kin)
	g.projTagMap.Add(entity, &ProjectileTag{})

	body := g.phys.CreateProjectileBody(entity, shellRadius, shellMass)
	body.Pos = pos
	body.Vel = vel
	body.Ignore = shooter.Entity
	g.bodies[entity] = body

	id := ksuid.New().String()
	g.projMeta[id] = &ProjectileMeta{
		ID:             id,
		Entity:         entity,
		AmmoName:       ammo.Name,
		ShooterSession: shooter.SessionID,
		Shooter:        shooter.Entity,
		Damage:         ammo.Damage,
		Penetration:    ammo.Penetration,
		Explosion:      ammo.ExplosionRadius,
		SpawnPos:       pos,
		LastPos:        pos,
		LastVel:        vel,
	}
	g.shellByEntity[entity] = id
}
