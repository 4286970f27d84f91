package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Dims describes a box extent in metres.
type Dims struct {
	Width  float64 `yaml:"width" json:"width" msgpack:"w"`
	Height float64 `yaml:"height" json:"height" msgpack:"h"`
	Length float64 `yaml:"length" json:"length" msgpack:"l"`
}

// VehicleDefinition is a catalog entry for a vehicle. Zero fields are
// filled with defaults by ResolveVehicleStats at spawn time.
type VehicleDefinition struct {
	Name                string  `yaml:"name" json:"name" msgpack:"name"`
	BR                  float64 `yaml:"br" json:"br" msgpack:"br"`
	HullArmor           float64 `yaml:"hullArmor" json:"hullArmor" msgpack:"ha"`
	TurretArmor         float64 `yaml:"turretArmor" json:"turretArmor" msgpack:"ta"`
	Caliber             float64 `yaml:"caliber" json:"caliber" msgpack:"cal"`
	AmmoCapacity        int     `yaml:"ammoCapacity" json:"ammoCapacity" msgpack:"cap"`
	FireRate            float64 `yaml:"fireRate" json:"fireRate" msgpack:"fr"` // rounds/minute
	MaxSpeed            float64 `yaml:"maxSpeed" json:"maxSpeed" msgpack:"ms"` // m/s
	MaxReverseSpeed     float64 `yaml:"maxReverseSpeed" json:"maxReverseSpeed" msgpack:"mrs"`
	HullRotationRate    float64 `yaml:"hullRotationRate" json:"hullRotationRate" msgpack:"hrr"` // deg/s
	TurretRotationRate  float64 `yaml:"turretRotationRate" json:"turretRotationRate" msgpack:"trr"` // deg/s
	GunElevationLimit   float64 `yaml:"gunElevationLimit" json:"gunElevationLimit" msgpack:"gel"` // deg
	GunDepressionLimit  float64 `yaml:"gunDepressionLimit" json:"gunDepressionLimit" msgpack:"gdl"` // deg
	BarrelLength        float64 `yaml:"barrelLength" json:"barrelLength" msgpack:"bl"` // m
	Body                Dims    `yaml:"body" json:"body" msgpack:"body"`
	Turret              Dims    `yaml:"turret" json:"turret" msgpack:"turret"`
	TurretOffsetXPercent float64 `yaml:"turretOffsetXPercent" json:"turretOffsetXPercent" msgpack:"tox"`
	TurretOffsetYPercent float64 `yaml:"turretOffsetYPercent" json:"turretOffsetYPercent" msgpack:"toy"`
	Mass                float64 `yaml:"mass" json:"mass" msgpack:"mass"` // kg
	FixedSuperstructure bool    `yaml:"fixedSuperstructure" json:"fixedSuperstructure" msgpack:"fs"`
	TraverseHalfAngle   float64 `yaml:"traverseHalfAngle" json:"traverseHalfAngle" msgpack:"tha"` // deg
}

// AmmoDefinition is a catalog entry for an ammunition type.
type AmmoDefinition struct {
	Name            string  `yaml:"name" json:"name" msgpack:"name"`
	Speed           float64 `yaml:"speed" json:"speed" msgpack:"spd"` // m/s muzzle velocity
	Damage          float64 `yaml:"damage" json:"damage" msgpack:"dmg"`
	Penetration     float64 `yaml:"penetration" json:"penetration" msgpack:"pen"`
	ExplosionRadius float64 `yaml:"explosionRadius" json:"explosionRadius" msgpack:"exp"`
	Caliber         float64 `yaml:"caliber" json:"caliber" msgpack:"cal"`
	LifetimeSec     float64 `yaml:"lifetimeSec" json:"lifetimeSec" msgpack:"life"`
}

// Fallbacks applied by ResolveVehicleStats. These mirror a mid-tier
// medium tank so a sparse catalog entry still produces a drivable vehicle.
const (
	defaultMaxSpeed           = 13.0 // m/s
	defaultMaxReverseSpeed    = 5.0
	defaultHullRotationRate   = 40.0 // deg/s
	defaultMaxTurnAccel       = 2.5  // rad/s^2
	defaultTurretRotationRate = 24.0 // deg/s
	defaultGunElevation       = 20.0 // deg
	defaultGunDepression      = 8.0  // deg
	defaultBarrelLength       = 5.0  // m
	defaultHullArmor          = 50.0
	defaultAmmoCapacity       = 40
	defaultFireRate           = 8.0 // rounds/minute
	defaultMass               = 30000.0
	defaultShellLifetime      = 5.0 // s
)

var defaultBodyDims = Dims{Width: 3.2, Height: 1.6, Length: 6.2}
var defaultTurretDims = Dims{Width: 2.4, Height: 0.9, Length: 3.0}

// ResolveVehicleStats produces the fully populated, immutable stats block
// for a vehicle. Every fallback lives here so the control and fire systems
// never have to re-check for missing catalog values.
func ResolveVehicleStats(def VehicleDefinition) TankStats {
	s := TankStats{
		MaxSpeed:        def.MaxSpeed,
		MaxReverseSpeed: def.MaxReverseSpeed,
		BarrelLength:    def.BarrelLength,
		HullArmor:       def.HullArmor,
		TurretArmor:     def.TurretArmor,
		Mass:            def.Mass,
	}
	if s.MaxSpeed <= 0 {
		s.MaxSpeed = defaultMaxSpeed
	}
	if s.MaxReverseSpeed <= 0 {
		s.MaxReverseSpeed = defaultMaxReverseSpeed
	}
	if s.BarrelLength <= 0 {
		s.BarrelLength = defaultBarrelLength
	}
	if s.HullArmor <= 0 {
		s.HullArmor = defaultHullArmor
	}
	if s.Mass <= 0 {
		s.Mass = defaultMass
	}

	hullRate := def.HullRotationRate
	if hullRate <= 0 {
		hullRate = defaultHullRotationRate
	}
	turretRate := def.TurretRotationRate
	if turretRate <= 0 {
		turretRate = defaultTurretRotationRate
	}
	elev := def.GunElevationLimit
	if elev <= 0 {
		elev = defaultGunElevation
	}
	depr := def.GunDepressionLimit
	if depr <= 0 {
		depr = defaultGunDepression
	}
	s.HullRotationRate = DegToRad(hullRate)
	s.MaxTurnAccel = defaultMaxTurnAccel
	s.TurretRotationRate = DegToRad(turretRate)
	s.GunElevationLimit = DegToRad(elev)
	s.GunDepressionLimit = DegToRad(depr)

	body := def.Body
	if body.Width <= 0 || body.Height <= 0 || body.Length <= 0 {
		body = defaultBodyDims
	}
	turret := def.Turret
	if turret.Width <= 0 || turret.Height <= 0 || turret.Length <= 0 {
		turret = defaultTurretDims
	}
	s.BodyWidth, s.BodyHeight, s.BodyLength = body.Width, body.Height, body.Length
	s.TurretWidth, s.TurretHeight, s.TurretLength = turret.Width, turret.Height, turret.Length
	s.TurretOffsetXPercent = def.TurretOffsetXPercent
	s.TurretOffsetYPercent = def.TurretOffsetYPercent

	s.FixedSuperstructure = def.FixedSuperstructure
	if s.FixedSuperstructure {
		half := def.TraverseHalfAngle
		if half <= 0 {
			half = 10.0
		}
		s.TraverseHalfAngle = DegToRad(half)
	}
	return s
}

// ResolveAmmoCapacity returns the loadout capacity for a vehicle.
func ResolveAmmoCapacity(def VehicleDefinition) int {
	if def.AmmoCapacity > 0 {
		return def.AmmoCapacity
	}
	return defaultAmmoCapacity
}

// ResolveFireCooldown converts a rounds/minute fire rate into the seconds
// between shots. Floored at 0.1s so a bad catalog value can never produce
// a zero or negative cooldown.
func ResolveFireCooldown(def VehicleDefinition) float64 {
	rate := def.FireRate
	if rate <= 0 {
		rate = defaultFireRate
	}
	cd := 60.0 / rate
	if cd < 0.1 {
		cd = 0.1
	}
	return cd
}

// CatalogProvider owns the vehicle and ammo catalogs consumed by the
// simulation. It is passed into each room explicitly — there is no
// package-level catalog state. Ammo entries can be hot-swapped while
// rooms are running; in-flight projectiles keep the metadata captured
// when they were fired.
type CatalogProvider struct {
	mu       sync.RWMutex
	vehicles map[string]VehicleDefinition
	ammo     map[string]AmmoDefinition
	terrains map[string]*TerrainDefinition
}

// NewCatalogProvider returns a provider seeded with the built-in catalog.
func NewCatalogProvider() *CatalogProvider {
	c := &CatalogProvider{
		vehicles: make(map[string]VehicleDefinition),
		ammo:     make(map[string]AmmoDefinition),
		terrains: make(map[string]*TerrainDefinition),
	}
	for _, v := range builtinVehicles {
		c.vehicles[v.Name] = v
	}
	for _, a := range builtinAmmo {
		c.ammo[a.Name] = a
	}
	return c
}

type catalogFile struct {
	Vehicles []VehicleDefinition `yaml:"vehicles"`
	Ammo     []AmmoDefinition    `yaml:"ammo"`
	Terrains []TerrainDefinition `yaml:"terrains"`
}

// LoadDir merges every *.yaml file in dir into the catalog. Entries with
// the same name replace earlier ones.
func (c *CatalogProvider) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read catalog %s: %w", path, err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("parse catalog %s: %w", path, err)
		}
		c.mu.Lock()
		for _, v := range f.Vehicles {
			if v.Name != "" {
				c.vehicles[v.Name] = v
			}
		}
		for _, a := range f.Ammo {
			if a.Name != "" {
				c.ammo[a.Name] = a
			}
		}
		for i := range f.Terrains {
			t := f.Terrains[i]
			if t.Name != "" {
				c.terrains[t.Name] = &t
			}
		}
		c.mu.Unlock()
	}
	return nil
}

// Vehicle looks up a vehicle definition by name.
func (c *CatalogProvider) Vehicle(name string) (VehicleDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vehicles[name]
	return v, ok
}

// Terrain looks up a terrain definition by name. Returns nil for an
// unknown name; the physics layer treats nil as the flat fallback plane.
func (c *CatalogProvider) Terrain(name string) *TerrainDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terrains[name]
}

// Ammo looks up an ammo definition by name.
func (c *CatalogProvider) Ammo(name string) (AmmoDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.ammo[name]
	return a, ok
}

// VehicleNames returns all catalog vehicle names.
func (c *CatalogProvider) VehicleNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.vehicles))
	for name := range c.vehicles {
		names = append(names, name)
	}
	return names
}

// RefreshAmmo replaces the ammo catalog wholesale. Projectiles already in
// flight are unaffected — they carry their own captured metadata.
func (c *CatalogProvider) RefreshAmmo(defs []AmmoDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ammo = make(map[string]AmmoDefinition, len(defs))
	for _, a := range defs {
		if a.Name != "" {
			c.ammo[a.Name] = a
		}
	}
}

// AmmoLifetime returns the flight lifetime for an ammo definition.
func AmmoLifetime(def AmmoDefinition) float64 {
	if def.LifetimeSec > 0 {
		return def.LifetimeSec
	}
	return defaultShellLifetime
}

// builtinVehicles is the default vehicle roster used when no catalog
// directory is configured.
var builtinVehicles = []VehicleDefinition{
	{
		Name: "M4A1", BR: 3.7, HullArmor: 51, TurretArmor: 76, Caliber: 75,
		AmmoCapacity: 90, FireRate: 12, MaxSpeed: 11.8, MaxReverseSpeed: 4.5,
		HullRotationRate: 38, TurretRotationRate: 24,
		GunElevationLimit: 25, GunDepressionLimit: 12, BarrelLength: 3.0,
		Body:   Dims{Width: 2.62, Height: 1.7, Length: 5.84},
		Turret: Dims{Width: 2.2, Height: 0.95, Length: 2.6},
		Mass:   30300,
	},
	{
		Name: "T-34-85", BR: 5.7, HullArmor: 45, TurretArmor: 90, Caliber: 85,
		AmmoCapacity: 60, FireRate: 9, MaxSpeed: 14.9, MaxReverseSpeed: 2.0,
		HullRotationRate: 42, TurretRotationRate: 26,
		GunElevationLimit: 22, GunDepressionLimit: 5, BarrelLength: 4.65,
		Body:   Dims{Width: 3.0, Height: 1.6, Length: 6.1},
		Turret: Dims{Width: 2.4, Height: 0.9, Length: 2.8},
		Mass:   32000,
	},
	{
		Name: "Tiger I", BR: 5.7, HullArmor: 100, TurretArmor: 110, Caliber: 88,
		AmmoCapacity: 92, FireRate: 7, MaxSpeed: 12.5, MaxReverseSpeed: 3.0,
		HullRotationRate: 32, TurretRotationRate: 19,
		GunElevationLimit: 16, GunDepressionLimit: 8, BarrelLength: 4.93,
		Body:   Dims{Width: 3.55, Height: 1.8, Length: 6.3},
		Turret: Dims{Width: 2.7, Height: 1.0, Length: 3.2},
		Mass:   57000,
	},
	{
		Name: "StuG III", BR: 3.3, HullArmor: 80, TurretArmor: 80, Caliber: 75,
		AmmoCapacity: 54, FireRate: 11, MaxSpeed: 11.1, MaxReverseSpeed: 4.0,
		HullRotationRate: 36, TurretRotationRate: 15,
		GunElevationLimit: 20, GunDepressionLimit: 6, BarrelLength: 3.6,
		Body:   Dims{Width: 2.95, Height: 1.2, Length: 5.5},
		Turret: Dims{Width: 2.9, Height: 0.6, Length: 3.0},
		Mass:   23900,
		// Casemate gun: no rotating turret, traverse limited to the mount.
		FixedSuperstructure: true,
		TraverseHalfAngle:   10,
	},
}

// builtinAmmo is the default shell catalog.
var builtinAmmo = []AmmoDefinition{
	{Name: "AP", Speed: 792, Damage: 40, Penetration: 110, ExplosionRadius: 0, Caliber: 75},
	{Name: "APHE", Speed: 750, Damage: 45, Penetration: 90, ExplosionRadius: 10, Caliber: 75},
	{Name: "HE", Speed: 565, Damage: 25, Penetration: 10, ExplosionRadius: 30, Caliber: 75},
	{Name: "HEAT", Speed: 450, Damage: 35, Penetration: 130, ExplosionRadius: 15, Caliber: 75},
}
