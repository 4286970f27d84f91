package main

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// stepFor advances the game n ticks and merges every tick's events.
func stepFor(g *Game, n int) StepResult {
	var all StepResult
	for i := 0; i < n; i++ {
		res := g.Step(0.05)
		all.Explosions = append(all.Explosions, res.Explosions...)
		all.Damage = append(all.Damage, res.Damage...)
		all.Kills = append(all.Kills, res.Kills...)
	}
	return all
}

// parkVehicle pins a vehicle at a position by moving its body and its
// target together, so the control loop holds it there.
func parkVehicle(g *Game, sid string, x, z float64) {
	meta := g.players[sid]
	body := g.bodies[meta.Entity]
	ground, _ := g.phys.ElevationAt(x, z)
	y := ground + g.statsMap.Get(meta.Entity).BodyHeight/2
	body.Pos = r3.Vec{X: x, Y: y, Z: z}
	body.Vel = r3.Vec{}
	body.Yaw = 0
	g.UpdateTarget(sid, TargetUpdate{X: fp(x), Y: fp(y), Z: fp(z), Yaw: fp(0)})
	g.Step(0.05)
}

func TestShellHitsTerrainWithoutHurtingShooter(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 10})
	parkVehicle(g, "s1", 0, 0)

	g.QueueFire("s1", "AP")
	res := stepFor(g, 40) // 2s: a flat shot drops to the ground well inside that

	if len(res.Damage) != 0 {
		t.Errorf("a shooter alone on the map must take no damage, got %d events", len(res.Damage))
	}
	if len(res.Explosions) != 1 {
		t.Fatalf("expected exactly 1 explosion, got %d", len(res.Explosions))
	}
	e := res.Explosions[0]
	if e.HitKind != HitKindTerrain {
		t.Errorf("expected terrain hit, got %q", e.HitKind)
	}
	if e.ShooterSessionID != "s1" {
		t.Errorf("explosion should carry the shooter session, got %q", e.ShooterSessionID)
	}
	if e.DistanceTravelled <= 0 {
		t.Error("explosion telemetry should include distance travelled")
	}
	if len(g.projMeta) != 0 || len(g.shellByEntity) != 0 {
		t.Error("shell records must be gone after destruction")
	}
}

func TestShellTimeoutTelemetry(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 10})
	parkVehicle(g, "s1", 0, 0)

	// Elevate the gun so the shell leaves the terrain bounds airborne.
	g.UpdateTarget("s1", TargetUpdate{GunPitch: fp(0.4)})
	stepFor(g, 40)

	g.QueueFire("s1", "AP")
	res := stepFor(g, 120) // 6s > the 5s shell lifetime

	if len(res.Explosions) != 1 {
		t.Fatalf("expected 1 explosion, got %d", len(res.Explosions))
	}
	e := res.Explosions[0]
	if e.HitKind != HitKindTimeout {
		t.Errorf("expected timeout, got %q", e.HitKind)
	}
	// ~792 m/s for ~5s of flight.
	if e.DistanceTravelled < 3000 {
		t.Errorf("distance %v too short for a 5s flight", e.DistanceTravelled)
	}
	if e.TravelTimeMs < 4900 || e.TravelTimeMs > 5200 {
		t.Errorf("travel time %vms should be close to the 5000ms lifetime", e.TravelTimeMs)
	}
	if e.ImpactSpeed <= 0 {
		t.Error("impact speed should be recorded")
	}
}

func TestShellDamagesAndKillsVictim(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	mustAddPlayer(t, g, "shooter", "M4A1", map[string]int{"AP": 10})
	victim := mustAddPlayer(t, g, "victim", "M4A1", nil)
	parkVehicle(g, "shooter", 0, 0)
	parkVehicle(g, "victim", 0, 250)

	g.QueueFire("shooter", "AP")
	res := stepFor(g, 20) // 1s: 250m at 792 m/s

	if len(res.Damage) != 1 {
		t.Fatalf("expected 1 damage event, got %d", len(res.Damage))
	}
	d := res.Damage[0]
	if d.SessionID != "victim" || d.Shooter != "shooter" {
		t.Errorf("unexpected damage attribution: %+v", d)
	}
	// AP: 110 pen beats 51 hull armor, full 40 damage, no explosion bonus.
	if d.Health != 60 {
		t.Errorf("expected 60 HP after penetrating AP hit, got %v", d.Health)
	}
	if len(res.Kills) != 0 {
		t.Error("a 40 damage hit on 100 HP must not kill")
	}
	if len(res.Explosions) != 1 || res.Explosions[0].HitKind != HitKindTank {
		t.Fatalf("expected one tank-hit explosion, got %+v", res.Explosions)
	}
	if res.Explosions[0].HitSessionID != "victim" {
		t.Errorf("tank hit should name the victim, got %q", res.Explosions[0].HitSessionID)
	}

	// Drop the victim to killing range and shoot again.
	g.healthMap.Get(victim.Entity).Current = 30
	stepFor(g, 110) // let the 5s cooldown lapse
	parkVehicle(g, "shooter", 0, 0)
	parkVehicle(g, "victim", 0, 250)
	g.QueueFire("shooter", "AP")
	res = stepFor(g, 20)

	if len(res.Kills) != 1 {
		t.Fatalf("expected 1 kill, got %d", len(res.Kills))
	}
	if res.Kills[0].Shooter != "shooter" || res.Kills[0].Victim != "victim" {
		t.Errorf("unexpected kill attribution: %+v", res.Kills[0])
	}
}

func TestBattleTallyTracksCombat(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	shooter := mustAddPlayer(t, g, "shooter", "M4A1", map[string]int{"AP": 10})
	victim := mustAddPlayer(t, g, "victim", "M4A1", nil)
	g.healthMap.Get(victim.Entity).Current = 30
	parkVehicle(g, "shooter", 0, 0)
	parkVehicle(g, "victim", 0, 250)

	g.QueueFire("shooter", "AP")
	res := stepFor(g, 20)
	if len(res.Kills) != 1 {
		t.Fatalf("expected the shot to kill, got %d kills", len(res.Kills))
	}

	if shooter.Tally.ShotsFired != 1 || shooter.Tally.ShotsOnTank != 1 || shooter.Tally.Kills != 1 {
		t.Errorf("shooter tally should read 1/1/1, got %+v", shooter.Tally)
	}
	if victim.Tally.Deaths != 1 {
		t.Errorf("victim should have 1 death, got %d", victim.Tally.Deaths)
	}

	tally, removed := g.RemovePlayer("shooter")
	if !removed {
		t.Fatal("removing a live player should report removal")
	}
	if tally.Kills != 1 || tally.ShotsFired != 1 || tally.ShotsOnTank != 1 {
		t.Errorf("final tally should carry the battle totals, got %+v", tally)
	}
	if tally.Playtime < 0 {
		t.Errorf("playtime must not be negative: %v", tally.Playtime)
	}
	if _, removed := g.RemovePlayer("shooter"); removed {
		t.Error("second removal must report nothing removed")
	}
}

func TestDestroyProjectileIdempotent(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 10})
	parkVehicle(g, "s1", 0, 0)

	g.QueueFire("s1", "AP")
	g.Step(0.05)

	var meta *ProjectileMeta
	for _, m := range g.projMeta {
		meta = m
	}
	if meta == nil {
		t.Fatal("expected a shell in flight")
	}

	var res StepResult
	g.destroyProjectile(meta, HitKindTerrain, "", &res)
	g.destroyProjectile(meta, HitKindTerrain, "", &res)
	if len(res.Explosions) != 1 {
		t.Errorf("double destruction must emit one explosion, got %d", len(res.Explosions))
	}
}
