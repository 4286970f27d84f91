package main

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// TargetUpdate is a partial write to a vehicle's target transform. Nil
// fields keep their previous value. Non-finite values are rejected
// per-field before they ever reach a component.
type TargetUpdate struct {
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Z         *float64 `json:"z,omitempty"`
	Yaw       *float64 `json:"yaw,omitempty"`
	TurretYaw *float64 `json:"turretYaw,omitempty"`
	GunPitch  *float64 `json:"gunPitch,omitempty"`
}

// applyField writes src over dst only when src is present and finite.
func applyField(dst *float64, src *float64) {
	if src != nil && IsFinite(*src) {
		*dst = *src
	}
}

// applyPendingTargets drains the per-entity target mailbox into the
// TargetTransform components. Only the latest write per session survives
// between ticks, so duplicate input messages collapse to one update.
func (g *Game) applyPendingTargets() {
	for sid, upd := range g.pendingTargets {
		meta, ok := g.players[sid]
		if !ok {
			continue
		}
		if !g.targetMap.HasAll(meta.Entity) {
			continue
		}
		target := g.targetMap.Get(meta.Entity)
		applyField(&target.X, upd.X)
		applyField(&target.Y, upd.Y)
		applyField(&target.Z, upd.Z)
		applyField(&target.Yaw, upd.Yaw)
		applyField(&target.TurretYaw, upd.TurretYaw)
		applyField(&target.GunPitch, upd.GunPitch)
	}
	clear(g.pendingTargets)
}

// integrateVehicles runs the continuous control loop for every vehicle:
// planar velocity toward the target position, yaw toward the target
// heading, turret and gun eased at their fixed angular rates. Movement is
// applied as impulses so physics contacts stay meaningful.
func (g *Game) integrateVehicles(dt float64) {
	if dt <= 0 {
		return
	}
	query := g.vehicleFilter.Query()
	for query.Next() {
		tf, target, _, stats := query.Get()
		body := g.bodies[query.Entity()]
		if body == nil {
			continue
		}

		g.steerHull(body, target, stats, dt)
		g.traverseTurret(tf, target, stats, dt)
	}
}

// steerHull converts the target position and heading into a velocity
// impulse and a bounded yaw acceleration.
func (g *Game) steerHull(body *Body, target *TargetTransform, stats *TankStats, dt float64) {
	// Desired planar velocity: the vector to the target, capped by the
	// forward or reverse speed limit depending on travel direction.
	dx := target.X - body.Pos.X
	dz := target.Z - body.Pos.Z
	dist := math.Hypot(dx, dz)

	var desired r3.Vec
	if dist > 1e-6 {
		forwardX := math.Sin(body.Yaw)
		forwardZ := math.Cos(body.Yaw)
		limit := stats.MaxSpeed
		if dx*forwardX+dz*forwardZ < 0 {
			limit = stats.MaxReverseSpeed
		}
		speed := math.Min(dist/dt, limit)
		desired = r3.Vec{X: dx / dist * speed, Z: dz / dist * speed}
	}

	delta := r3.Vec{X: desired.X - body.Vel.X, Z: desired.Z - body.Vel.Z}
	g.phys.ApplyImpulse(body, r3.Scale(body.Mass, delta))

	// Yaw: shortest-arc error into a turn-rate-limited, acceleration-
	// bounded angular velocity change.
	yawErr := NormalizeAngle(target.Yaw - body.Yaw)
	desiredYawVel := Clamp(yawErr/dt, -stats.HullRotationRate, stats.HullRotationRate)
	dv := Clamp(desiredYawVel-body.YawVel, -stats.MaxTurnAccel*dt, stats.MaxTurnAccel*dt)
	body.YawVel += dv
}

// traverseTurret eases turret yaw and gun pitch toward their targets at
// the vehicle's fixed angular rate. Gun pitch targets are hard-clamped to
// the elevation/depression limits before easing; fixed-superstructure
// vehicles additionally clamp turret traverse to the mount's half-angle.
func (g *Game) traverseTurret(tf *Transform, target *TargetTransform, stats *TankStats, dt float64) {
	rate := stats.TurretRotationRate * dt

	turretTarget := target.TurretYaw
	if stats.FixedSuperstructure {
		turretTarget = Clamp(NormalizeAngle(turretTarget), -stats.TraverseHalfAngle, stats.TraverseHalfAngle)
	}
	tf.TurretYaw = MoveTowardAngle(tf.TurretYaw, turretTarget, rate)
	if stats.FixedSuperstructure {
		tf.TurretYaw = Clamp(tf.TurretYaw, -stats.TraverseHalfAngle, stats.TraverseHalfAngle)
	}

	pitchTarget := Clamp(target.GunPitch, -stats.GunDepressionLimit, stats.GunElevationLimit)
	tf.GunPitch = MoveToward(tf.GunPitch, pitchTarget, rate)
}

// reconcileVehicles copies the authoritative physics state back into the
// Transform and Velocity components after the world steps. The body, not
// the component, is the source of truth.
func (g *Game) reconcileVehicles() {
	query := g.vehicleFilter.Query()
	for query.Next() {
		tf, _, vel, _ := query.Get()
		body := g.bodies[query.Entity()]
		if body == nil {
			continue
		}
		tf.X, tf.Y, tf.Z = body.Pos.X, body.Pos.Y, body.Pos.Z
		tf.Yaw = body.Yaw
		vel.VX, vel.VY, vel.VZ = body.Vel.X, body.Vel.Y, body.Vel.Z
	}
}

// tickCooldowns decrements every fire cooldown toward zero.
func (g *Game) tickCooldowns(dt float64) {
	query := g.cooldownFilter.Query()
	for query.Next() {
		cd := query.Get()
		if cd.Value > 0 {
			cd.Value -= dt
			if cd.Value < 0 {
				cd.Value = 0
			}
		}
	}
}
