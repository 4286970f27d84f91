package main

import "encoding/json"

// Client -> server message types.
const (
	MsgList     = "list"
	MsgCreate   = "create"
	MsgJoin     = "join"
	MsgTarget   = "target"
	MsgFire     = "fire"
	MsgTerrain  = "terrain"
	MsgLeave    = "leave"
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth"
	MsgGuest    = "guest"
	MsgProfile  = "profile"
	MsgPing     = "ping"
)

// Server -> client message types.
const (
	MsgSessions    = "sessions"
	MsgCreated     = "created"
	MsgJoined      = "joined"
	MsgPlayerMeta  = "pmeta"
	MsgPlayerGone  = "pgone"
	MsgExplosion   = "boom"
	MsgDamage      = "dmg"
	MsgKill        = "kill"
	MsgAuthOK      = "authok"
	MsgProfileData = "pdata"
	MsgError       = "err"
	MsgPong        = "pong"
)

// Hit classification carried on explosion events.
const (
	HitKindTank    = "tank"
	HitKindTerrain = "terrain"
	HitKindTimeout = "timeout"
)

// Envelope is the JSON frame wrapping every control-plane message in
// both directions. State snapshots travel separately as msgpack binary
// frames.
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope defers payload decoding until the type tag is known.
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

// CreateMsg asks for a new battle room, optionally with a terrain name
// from the catalog.
type CreateMsg struct {
	Name     string `json:"name"`
	RoomName string `json:"room"`
	Terrain  string `json:"terrain"`
}

// JoinMsg is the payload of a join message: the room to enter, the
// vehicle to spawn and the per-ammo loadout to carry.
type JoinMsg struct {
	RoomID  string         `json:"rid"`
	Name    string         `json:"name"`
	Vehicle string         `json:"vehicle"`
	Loadout map[string]int `json:"loadout"`
}

// FireMsg names the ammo type to fire from the player's loadout.
type FireMsg struct {
	Ammo string `json:"ammo"`
}

// TerrainMsg swaps the room's battlefield to a named catalog terrain.
type TerrainMsg struct {
	Name string `json:"name"`
}

// RegisterMsg creates an account.
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates by credentials.
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates by stored token.
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg acknowledges a successful register/login/auth.
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"player_id"`
}

// ProfileDataMsg carries lifetime stats to the client.
type ProfileDataMsg struct {
	Username    string  `json:"username"`
	Kills       int     `json:"kills"`
	Deaths      int     `json:"deaths"`
	ShotsFired  int     `json:"shots_fired"`
	ShotsOnTank int     `json:"shots_on_tank"`
	Playtime    float64 `json:"playtime"`
}

// ErrorMsg carries an error string to the client.
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RoomInfo is one row in a room listing.
type RoomInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Terrain string `json:"terrain"`
	Players int    `json:"players"`
}

// StepResult is everything one tick produced that the session boundary
// must broadcast.
type StepResult struct {
	Explosions []ExplosionEvent
	Damage     []DamageEvent
	Kills      []KillEvent
}

// ExplosionEvent reports a projectile's destruction with its full
// flight telemetry, whatever the trigger was.
type ExplosionEvent struct {
	ID               string  `json:"id"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Z                float64 `json:"z"`
	AmmoName         string  `json:"ammo"`
	ShooterSessionID string  `json:"shooter"`
	HitKind          string  `json:"hit"`
	HitSessionID     string  `json:"victim,omitempty"`

	DistanceTravelled float64 `json:"dist"`
	TravelTimeMs      float64 `json:"ttms"`
	ImpactSpeed       float64 `json:"speed"`
	ImpactVX          float64 `json:"ivx"`
	ImpactVY          float64 `json:"ivy"`
	ImpactVZ          float64 `json:"ivz"`
}

// DamageEvent reports a vehicle's health after taking a hit.
type DamageEvent struct {
	SessionID string  `json:"sid"`
	Health    float64 `json:"hp"`
	Shooter   string  `json:"shooter"`
}

// KillEvent reports a destroyed vehicle.
type KillEvent struct {
	Shooter string `json:"shooter"`
	Victim  string `json:"victim"`
}
