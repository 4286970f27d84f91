package main

import "github.com/mlange-42/ark/ecs"

// Transform is the authoritative world pose of an entity: position plus
// three independent rotation axes (hull yaw, turret yaw relative to the
// hull, gun pitch relative to the turret). Angles in radians.
type Transform struct {
	X, Y, Z   float64
	Yaw       float64
	TurretYaw float64
	GunPitch  float64
}

// TargetTransform is the pose the control system eases toward. Written
// only from validated client input.
type TargetTransform struct {
	X, Y, Z   float64
	Yaw       float64
	TurretYaw float64
	GunPitch  float64
}

// Velocity mirrors the linear velocity of the entity's physics body.
type Velocity struct {
	VX, VY, VZ float64
}

// Health tracks hit points. Current stays in [0, Max]; Max is fixed at spawn.
type Health struct {
	Current float64
	Max     float64
}

// AmmoState tracks total rounds across all ammo types in the loadout.
type AmmoState struct {
	Capacity  int
	Remaining int
}

// Cooldown is the time in seconds before the next shot is permitted.
// It decreases toward zero and never goes negative.
type Cooldown struct {
	Value float64
}

// TankStats holds the immutable per-vehicle constants resolved from the
// catalog definition at spawn time. All fallback logic happens once, in
// ResolveVehicleStats — readers can use these fields directly.
type TankStats struct {
	MaxSpeed        float64 // m/s forward
	MaxReverseSpeed float64 // m/s
	HullRotationRate   float64 // rad/s
	MaxTurnAccel       float64 // rad/s^2
	TurretRotationRate float64 // rad/s
	GunElevationLimit  float64 // rad, up
	GunDepressionLimit float64 // rad, down (positive magnitude)

	BarrelLength float64 // m

	BodyWidth, BodyHeight, BodyLength       float64 // m
	TurretWidth, TurretHeight, TurretLength float64 // m
	TurretOffsetXPercent                    float64 // percent of hull width
	TurretOffsetYPercent                    float64 // percent of hull length

	HullArmor   float64
	TurretArmor float64 // tracked but not consulted by the damage formula
	Mass        float64 // kg

	// Fixed-superstructure vehicles have no rotating turret; traverse is
	// clamped to +/- TraverseHalfAngle instead of being unrestricted.
	FixedSuperstructure bool
	TraverseHalfAngle   float64 // rad
}

// ProjectileKinematics is the ballistic state of an in-flight shell.
// The entity is destroyed when LifeRemaining reaches zero.
type ProjectileKinematics struct {
	VX, VY, VZ    float64
	LifeRemaining float64
	Shooter       ecs.Entity
}

// PlayerTag marks player-controlled vehicle entities.
type PlayerTag struct{}

// ProjectileTag marks in-flight shell entities.
type ProjectileTag struct{}
