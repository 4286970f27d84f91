package main

import (
	"math"
	"testing"
)

func TestMuzzleTransformStraightAhead(t *testing.T) {
	tf := &Transform{}
	stats := &TankStats{
		BodyHeight:   2,
		TurretHeight: 1,
		BarrelLength: 5,
	}
	muzzle, dir := MuzzleTransform(tf, stats)

	if math.Abs(dir.X) > 1e-9 || math.Abs(dir.Y) > 1e-9 || math.Abs(dir.Z-1) > 1e-9 {
		t.Errorf("zero pose should fire along +Z, got %+v", dir)
	}
	// Pivot at half hull plus half turret, advanced one barrel length.
	if math.Abs(muzzle.Y-1.5) > 1e-9 || math.Abs(muzzle.Z-5) > 1e-9 {
		t.Errorf("unexpected muzzle %+v", muzzle)
	}
}

func TestMuzzleTransformCombinesHullAndTurretYaw(t *testing.T) {
	tf := &Transform{Yaw: math.Pi / 4, TurretYaw: math.Pi / 4}
	stats := &TankStats{BodyHeight: 2, TurretHeight: 1, BarrelLength: 5}
	_, dir := MuzzleTransform(tf, stats)

	// Combined azimuth of 90 degrees fires along +X.
	if math.Abs(dir.X-1) > 1e-9 || math.Abs(dir.Z) > 1e-9 {
		t.Errorf("expected +X firing direction, got %+v", dir)
	}
}

func TestMuzzleGroundClearance(t *testing.T) {
	// Hull centre at 1m, height 2m: underside at 0, floor margin at 0.2.
	tf := &Transform{Y: 1, GunPitch: -0.5}
	stats := &TankStats{
		BodyHeight:   2,
		TurretHeight: 1,
		BarrelLength: 50, // absurdly long to force the clamp
	}
	muzzle, _ := MuzzleTransform(tf, stats)
	if muzzle.Y < muzzleGroundClearance-1e-9 {
		t.Errorf("muzzle %v dropped below the clearance floor", muzzle.Y)
	}
}

func TestFireConsumesAmmoAndSetsCooldown(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	meta := mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 10})

	g.QueueFire("s1", "AP")
	g.Step(0.05)

	if meta.Loadout["AP"] != 9 {
		t.Errorf("expected 9 AP rounds, got %d", meta.Loadout["AP"])
	}
	ammo := g.ammoMap.Get(meta.Entity)
	if ammo.Remaining != 9 {
		t.Errorf("aggregate counter should be 9, got %d", ammo.Remaining)
	}
	if g.cooldownMap.Get(meta.Entity).Value <= 0 {
		t.Error("cooldown should be armed after firing")
	}
	if len(g.projMeta) != 1 {
		t.Errorf("expected 1 shell in flight, got %d", len(g.projMeta))
	}
}

func TestFireRejectedDuringCooldown(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	meta := mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 10})

	g.QueueFire("s1", "AP")
	g.Step(0.05)
	g.QueueFire("s1", "AP")
	g.Step(0.05)

	if meta.Loadout["AP"] != 9 {
		t.Errorf("second shot during cooldown must be rejected, loadout %d", meta.Loadout["AP"])
	}
}

func TestFireRejectedWithEmptyLoadout(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	meta := mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 0})

	g.QueueFire("s1", "AP")
	g.Step(0.05)

	if len(g.projMeta) != 0 {
		t.Error("firing with zero rounds must not spawn a shell")
	}
	if g.cooldownMap.Get(meta.Entity).Value != 0 {
		t.Error("rejected fire must not arm the cooldown")
	}
}

func TestFireRejectedForUnknownAmmo(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"Nuke": 10})

	g.QueueFire("s1", "Nuke")
	g.Step(0.05)

	if len(g.projMeta) != 0 {
		t.Error("ammo missing from the catalog must not fire")
	}
}

func TestFireMailboxCollapsesDuplicates(t *testing.T) {
	g := NewGame(NewCatalogProvider(), nil)
	meta := mustAddPlayer(t, g, "s1", "M4A1", map[string]int{"AP": 10})

	// Several requests within one tick spawn at most one shell.
	g.QueueFire("s1", "AP")
	g.QueueFire("s1", "AP")
	g.QueueFire("s1", "AP")
	g.Step(0.05)

	if meta.Loadout["AP"] != 9 {
		t.Errorf("duplicate requests must collapse to one shot, loadout %d", meta.Loadout["AP"])
	}
	if len(g.projMeta) != 1 {
		t.Errorf("expected 1 shell, got %d", len(g.projMeta))
	}
}

func TestResolveFireCooldownFloor(t *testing.T) {
	cd := ResolveFireCooldown(VehicleDefinition{FireRate: 6000})
	if cd != 0.1 {
		t.Errorf("cooldown should floor at 0.1s, got %v", cd)
	}
	cd = ResolveFireCooldown(VehicleDefinition{FireRate: 12})
	if cd != 5.0 {
		t.Errorf("12 rounds/minute should yield 5s, got %v", cd)
	}
}
