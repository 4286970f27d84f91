package main

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Gravity on the vertical axis, m/s^2.
	GravityY = -9.81

	// Tank bodies get fixed damping so they settle instead of drifting.
	tankLinearDamping  = 2.5 // 1/s
	tankAngularDamping = 4.0 // 1/s

	// Maximum distance a projectile may travel per integration substep.
	// Keeps fast shells from tunneling through thin terrain features.
	maxSubstepTravel = 2.0 // m
)

// BodyKind distinguishes collider roles in the physics world.
type BodyKind int

const (
	BodyTank BodyKind = iota
	BodyProjectile
)

// Body is a rigid body in the simulation world. Tanks are yaw-aligned
// boxes, projectiles are spheres. The body is the source of truth for
// position and velocity; components mirror it after each step.
type Body struct {
	Entity ecs.Entity
	Kind   BodyKind

	Pos    r3.Vec
	Vel    r3.Vec
	Yaw    float64
	YawVel float64

	Mass           float64
	LinearDamping  float64
	AngularDamping float64

	HalfExtents r3.Vec  // box half extents (tanks)
	Radius      float64 // sphere radius (projectiles)

	// Ignore names an entity whose body this one never collides with.
	// Used so a shell cannot contact the vehicle that fired it.
	Ignore ecs.Entity

	Grounded bool
}

// Contact records a projectile collision found during a step. Target is
// nil for terrain hits.
type Contact struct {
	Projectile *Body
	Target     *Body
	Point      r3.Vec
}

// PhysicsWorld owns the rigid bodies and the terrain collision geometry
// for one room. It is not safe for concurrent use; the room's simulation
// loop is its only caller.
type PhysicsWorld struct {
	Gravity r3.Vec
	terrain *Terrain
	bodies  []*Body
}

// NewPhysicsWorld creates a world with default gravity and the flat
// fallback terrain.
func NewPhysicsWorld() *PhysicsWorld {
	return &PhysicsWorld{
		Gravity: r3.Vec{Y: GravityY},
		terrain: BuildTerrain(nil),
	}
}

// RebuildTerrain synchronously replaces the terrain collision geometry.
// In-flight projectiles are not re-homed; for one tick after a rebuild
// they may clip oddly against the new surface. That is accepted behavior.
func (w *PhysicsWorld) RebuildTerrain(def *TerrainDefinition) {
	w.terrain = BuildTerrain(def)
}

// ElevationAt samples the terrain height under a world position.
func (w *PhysicsWorld) ElevationAt(x, z float64) (float64, bool) {
	if w.terrain == nil {
		return 0, false
	}
	return w.terrain.ElevationAt(x, z)
}

// CreateTankBody adds a box collider sized from the vehicle hull.
func (w *PhysicsWorld) CreateTankBody(e ecs.Entity, dims r3.Vec, mass float64) *Body {
	b := &Body{
		Entity:         e,
		Kind:           BodyTank,
		Mass:           mass,
		LinearDamping:  tankLinearDamping,
		AngularDamping: tankAngularDamping,
		HalfExtents:    r3.Scale(0.5, dims),
	}
	w.bodies = append(w.bodies, b)
	return b
}

// CreateProjectileBody adds a sphere collider with zero linear damping:
// shells respond only to gravity and the impulse that launched them.
func (w *PhysicsWorld) CreateProjectileBody(e ecs.Entity, radius, mass float64) *Body {
	b := &Body{
		Entity: e,
		Kind:   BodyProjectile,
		Mass:   mass,
		Radius: radius,
	}
	w.bodies = append(w.bodies, b)
	return b
}

// RemoveBody detaches a body from the world.
func (w *PhysicsWorld) RemoveBody(b *Body) {
	for i, other := range w.bodies {
		if other == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			return
		}
	}
}

// ApplyImpulse changes a body's velocity by impulse/mass.
func (w *PhysicsWorld) ApplyImpulse(b *Body, impulse r3.Vec) {
	if b.Mass <= 0 {
		return
	}
	b.Vel = r3.Add(b.Vel, r3.Scale(1.0/b.Mass, impulse))
}

// Step advances every body by dt and returns the projectile contacts
// discovered along the way, in body insertion order so collision
// resolution stays deterministic.
func (w *PhysicsWorld) Step(dt float64) []Contact {
	var contacts []Contact
	for _, b := range w.bodies {
		switch b.Kind {
		case BodyTank:
			w.stepTank(b, dt)
		case BodyProjectile:
			contacts = w.stepProjectile(b, dt, contacts)
		}
	}
	return contacts
}

func (w *PhysicsWorld) stepTank(b *Body, dt float64) {
	b.Vel = r3.Add(b.Vel, r3.Scale(dt, w.Gravity))
	b.Pos = r3.Add(b.Pos, r3.Scale(dt, b.Vel))
	b.Yaw = NormalizeAngle(b.Yaw + b.YawVel*dt)

	// Terrain support: rest the hull on the surface.
	b.Grounded = false
	if ground, ok := w.ElevationAt(b.Pos.X, b.Pos.Z); ok {
		floor := ground + b.HalfExtents.Y
		if b.Pos.Y <= floor {
			b.Pos.Y = floor
			if b.Vel.Y < 0 {
				b.Vel.Y = 0
			}
			b.Grounded = true
		}
	}

	// Damping settles residual motion between control impulses.
	lin := 1.0 - b.LinearDamping*dt
	if lin < 0 {
		lin = 0
	}
	b.Vel.X *= lin
	b.Vel.Z *= lin
	ang := 1.0 - b.AngularDamping*dt
	if ang < 0 {
		ang = 0
	}
	b.YawVel *= ang
}

func (w *PhysicsWorld) stepProjectile(b *Body, dt float64, contacts []Contact) []Contact {
	b.Vel = r3.Add(b.Vel, r3.Scale(dt, w.Gravity))

	// Substep so one tick of a ~800 m/s shell cannot skip a tank or a
	// terrain ridge entirely.
	travel := r3.Norm(b.Vel) * dt
	steps := int(math.Ceil(travel/maxSubstepTravel))
	if steps < 1 {
		steps = 1
	}
	sub := dt / float64(steps)

	for i := 0; i < steps; i++ {
		b.Pos = r3.Add(b.Pos, r3.Scale(sub, b.Vel))

		if ground, ok := w.ElevationAt(b.Pos.X, b.Pos.Z); ok {
			if b.Pos.Y-b.Radius <= ground {
				contacts = append(contacts, Contact{Projectile: b, Point: b.Pos})
				return contacts
			}
		}

		for _, other := range w.bodies {
			if other.Kind != BodyTank || other.Entity == b.Ignore {
				continue
			}
			if w.sphereHitsTank(b, other) {
				contacts = append(contacts, Contact{Projectile: b, Target: other, Point: b.Pos})
				return contacts
			}
		}
	}
	return contacts
}

// sphereHitsTank tests the projectile sphere against the tank's
// yaw-aligned box, expanded by the sphere radius.
func (w *PhysicsWorld) sphereHitsTank(p, tank *Body) bool {
	dx := p.Pos.X - tank.Pos.X
	dy := p.Pos.Y - tank.Pos.Y
	dz := p.Pos.Z - tank.Pos.Z

	// Rotate the offset into the tank's local frame.
	cos := math.Cos(tank.Yaw)
	sin := math.Sin(tank.Yaw)
	lx := dx*cos - dz*sin
	lz := dx*sin + dz*cos

	return math.Abs(lx) <= tank.HalfExtents.X+p.Radius &&
		math.Abs(dy) <= tank.HalfExtents.Y+p.Radius &&
		math.Abs(lz) <= tank.HalfExtents.Z+p.Radius
}
