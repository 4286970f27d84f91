package main

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// Shells falling below this altitude are discarded as out of bounds.
// Terrain is normalized around the origin, so nothing legitimate lives
// this far down.
const minShellAltitude = -100.0 // m

// updateProjectiles mirrors each shell's physics body back into its
// components, decrements lifetime, and accumulates flight telemetry.
func (g *Game) updateProjectiles(dt float64) {
	query := g.projFilter.Query()
	for query.Next() {
		tf, vel, kin := query.Get()
		entity := query.Entity()
		body := g.bodies[entity]
		if body == nil {
			continue
		}

		tf.X, tf.Y, tf.Z = body.Pos.X, body.Pos.Y, body.Pos.Z
		vel.VX, vel.VY, vel.VZ = body.Vel.X, body.Vel.Y, body.Vel.Z
		kin.VX, kin.VY, kin.VZ = body.Vel.X, body.Vel.Y, body.Vel.Z
		kin.LifeRemaining -= dt

		if id, ok := g.shellByEntity[entity]; ok {
			if meta, ok := g.projMeta[id]; ok {
				meta.Distance += r3.Norm(r3.Sub(body.Pos, meta.LastPos))
				meta.LastPos = body.Pos
				meta.LastVel = body.Vel
				meta.FlightTime += dt
			}
		}
	}
}

// resolveContacts turns the contact pairs collected during the physics
// step into damage, kill and explosion events. Contacts are resolved in
// collection order; the per-tick destroyed set makes destruction
// idempotent when several triggers fire for the same shell.
func (g *Game) resolveContacts(contacts []Contact, res *StepResult) {
	for _, c := range contacts {
		shellID, ok := g.shellByEntity[c.Projectile.Entity]
		if !ok {
			continue
		}
		if _, gone := g.destroyedThisTick[shellID]; gone {
			continue
		}
		meta, ok := g.projMeta[shellID]
		if !ok {
			continue
		}

		if c.Target == nil {
			g.destroyProjectile(meta, HitKindTerrain, "", res)
			continue
		}

		// A shooter can never damage its own vehicle.
		if c.Target.Entity == meta.Shooter {
			continue
		}

		victimSID, ok := g.sessionByEntity[c.Target.Entity]
		if !ok {
			g.destroyProjectile(meta, HitKindTerrain, "", res)
			continue
		}
		g.applyHit(meta, victimSID, c.Target.Entity, res)
		g.destroyProjectile(meta, HitKindTank, victimSID, res)
	}
}

// applyHit runs the damage formula against the victim's hull armor and
// emits the resulting damage/kill events.
func (g *Game) applyHit(meta *ProjectileMeta, victimSID string, victim ecs.Entity, res *StepResult) {
	if !g.healthMap.HasAll(victim) || !g.statsMap.HasAll(victim) {
		return
	}
	health := g.healthMap.Get(victim)
	stats := g.statsMap.Get(victim)

	damage := ComputeDamage(meta.Damage, meta.Penetration, stats.HullArmor, meta.Explosion)
	remaining, killed := ApplyDamage(health, damage)

	if shooter, ok := g.players[meta.ShooterSession]; ok {
		shooter.Tally.ShotsOnTank++
		if killed {
			shooter.Tally.Kills++
		}
	}
	if killed {
		if victimMeta, ok := g.players[victimSID]; ok {
			victimMeta.Tally.Deaths++
		}
	}

	res.Damage = append(res.Damage, DamageEvent{
		SessionID: victimSID,
		Health:    remaining,
		Shooter:   meta.ShooterSession,
	})
	if killed {
		res.Kills = append(res.Kills, KillEvent{
			Shooter: meta.ShooterSession,
			Victim:  victimSID,
		})
		if g.recorder != nil {
			g.recorder.TrackKill(meta.ShooterSession, victimSID, meta.AmmoName, meta.Distance)
		}
	}
}

// expireProjectiles destroys shells whose lifetime ran out or that fell
// below the minimum altitude. Shells already destroyed by a contact this
// tick are skipped by the idempotency set inside destroyProjectile.
func (g *Game) expireProjectiles(res *StepResult) {
	type expiry struct {
		meta *ProjectileMeta
		kind string
	}
	var expired []expiry

	query := g.projFilter.Query()
	for query.Next() {
		tf, _, kin := query.Get()
		id, ok := g.shellByEntity[query.Entity()]
		if !ok {
			continue
		}
		if _, gone := g.destroyedThisTick[id]; gone {
			continue
		}
		meta, ok := g.projMeta[id]
		if !ok {
			continue
		}
		switch {
		case kin.LifeRemaining <= 0:
			expired = append(expired, expiry{meta, HitKindTimeout})
		case tf.Y < minShellAltitude:
			expired = append(expired, expiry{meta, HitKindTimeout})
		}
	}

	for _, e := range expired {
		g.destroyProjectile(e.meta, e.kind, "", res)
	}
}

// destroyProjectile tears down a shell atomically: entity, physics body
// and metadata record go together, exactly once per tick, and the
// explosion telemetry event is emitted with the shell's final state.
func (g *Game) destroyProjectile(meta *ProjectileMeta, hitKind, hitSessionID string, res *StepResult) {
	if _, gone := g.destroyedThisTick[meta.ID]; gone {
		return
	}
	g.destroyedThisTick[meta.ID] = struct{}{}

	res.Explosions = append(res.Explosions, ExplosionEvent{
		ID:                meta.ID,
		X:                 meta.LastPos.X,
		Y:                 meta.LastPos.Y,
		Z:                 meta.LastPos.Z,
		AmmoName:          meta.AmmoName,
		ShooterSessionID:  meta.ShooterSession,
		HitKind:           hitKind,
		HitSessionID:      hitSessionID,
		DistanceTravelled: meta.Distance,
		TravelTimeMs:      meta.FlightTime * 1000.0,
		ImpactSpeed:       r3.Norm(meta.LastVel),
		ImpactVX:          meta.LastVel.X,
		ImpactVY:          meta.LastVel.Y,
		ImpactVZ:          meta.LastVel.Z,
	})

	entity := meta.Entity
	if body, ok := g.bodies[entity]; ok {
		g.phys.RemoveBody(body)
		delete(g.bodies, entity)
	}
	delete(g.shellByEntity, entity)
	delete(g.projMeta, meta.ID)
	if g.world.Alive(entity) {
		g.world.RemoveEntity(entity)
	}

	if g.recorder != nil {
		g.recorder.TrackExplosion(meta, hitKind)
	}
}
