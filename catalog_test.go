package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveVehicleStatsDefaults(t *testing.T) {
	s := ResolveVehicleStats(VehicleDefinition{Name: "sparse"})

	if s.MaxSpeed != defaultMaxSpeed {
		t.Errorf("expected default max speed, got %v", s.MaxSpeed)
	}
	if s.Mass != defaultMass {
		t.Errorf("expected default mass, got %v", s.Mass)
	}
	if s.BodyWidth != defaultBodyDims.Width {
		t.Errorf("expected default hull dims, got %v", s.BodyWidth)
	}
	// Angular values come out in radians.
	if s.TurretRotationRate != DegToRad(defaultTurretRotationRate) {
		t.Errorf("turret rate should be radians, got %v", s.TurretRotationRate)
	}
	if s.FixedSuperstructure {
		t.Error("default vehicles have a rotating turret")
	}
}

func TestResolveVehicleStatsFixedSuperstructureDefault(t *testing.T) {
	s := ResolveVehicleStats(VehicleDefinition{Name: "casemate", FixedSuperstructure: true})
	if s.TraverseHalfAngle != DegToRad(10) {
		t.Errorf("expected 10 degree default traverse, got %v", s.TraverseHalfAngle)
	}
}

func TestResolveAmmoCapacityDefault(t *testing.T) {
	if got := ResolveAmmoCapacity(VehicleDefinition{}); got != defaultAmmoCapacity {
		t.Errorf("expected default capacity, got %d", got)
	}
	if got := ResolveAmmoCapacity(VehicleDefinition{AmmoCapacity: 7}); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestCatalogBuiltins(t *testing.T) {
	c := NewCatalogProvider()
	if _, ok := c.Vehicle("Tiger I"); !ok {
		t.Error("builtin roster should include Tiger I")
	}
	if _, ok := c.Ammo("AP"); !ok {
		t.Error("builtin shells should include AP")
	}
	if c.Terrain("nowhere") != nil {
		t.Error("unknown terrain should resolve to nil")
	}
}

func TestCatalogLoadDir(t *testing.T) {
	dir := t.TempDir()
	content := `
vehicles:
  - name: Prototype
    maxSpeed: 20
ammo:
  - name: APDS
    speed: 1200
    damage: 50
    penetration: 200
terrains:
  - name: dunes
    sizeKm: 2
    elevations:
      - [0, 10]
      - [10, 20]
`
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCatalogProvider()
	if err := c.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	v, ok := c.Vehicle("Prototype")
	if !ok || v.MaxSpeed != 20 {
		t.Errorf("loaded vehicle missing or wrong: %+v", v)
	}
	a, ok := c.Ammo("APDS")
	if !ok || a.Penetration != 200 {
		t.Errorf("loaded ammo missing or wrong: %+v", a)
	}
	tr := c.Terrain("dunes")
	if tr == nil || tr.SizeKm != 2 {
		t.Errorf("loaded terrain missing or wrong: %+v", tr)
	}
	// Builtins survive a merge.
	if _, ok := c.Vehicle("M4A1"); !ok {
		t.Error("merge must not drop builtin entries")
	}
}

func TestRefreshAmmoDoesNotTouchShellsInFlight(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 10})
	parkVehicle(g, "s1", 0, 0)

	g.QueueFire("s1", "AP")
	g.Step(0.05)

	// Hot-swap the ammo catalog under the live shell.
	g.catalog.RefreshAmmo([]AmmoDefinition{
		{Name: "AP", Speed: 100, Damage: 1, Penetration: 1},
	})

	for _, meta := range g.projMeta {
		if meta.Damage != 40 || meta.Penetration != 110 {
			t.Errorf("in-flight shell must keep its captured stats, got %+v", meta)
		}
	}
	// New fires use the refreshed stats.
	if a, _ := g.catalog.Ammo("AP"); a.Damage != 1 {
		t.Errorf("refreshed catalog should serve new values, got %v", a.Damage)
	}
}

func TestAmmoLifetimeDefault(t *testing.T) {
	if got := AmmoLifetime(AmmoDefinition{}); got != defaultShellLifetime {
		t.Errorf("expected default lifetime, got %v", got)
	}
	if got := AmmoLifetime(AmmoDefinition{LifetimeSec: 12}); got != 12 {
		t.Errorf("expected 12, got %v", got)
	}
}
