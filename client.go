package main

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
	maxRoomNameLen    = 30
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	sessionID  string
	roomID     string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	// Auth state
	authPlayerID int64  // 0 = unauthenticated/guest
	authUsername string // "" = unauthenticated
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("addr", c.remoteAddr).Msg("ws read")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Warn().Str("addr", c.remoteAddr).Msg("rate limit exceeded, disconnecting")
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("ws marshal")
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Debug().Err(err).Msg("ws unmarshal")
		return
	}

	switch env.T {
	case MsgList:
		c.handleList()
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgTarget:
		c.handleTarget(env.D)
	case MsgFire:
		c.handleFire(env.D)
	case MsgTerrain:
		c.handleTerrain(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgGuest:
		c.handleGuest()
	case MsgProfile:
		c.handleProfile()
	case MsgPing:
		c.SendJSON(Envelope{T: MsgPong})
	}
}

func (c *Client) handleList() {
	rooms := c.hub.rooms.ListRooms()
	c.SendJSON(Envelope{T: MsgSessions, Data: rooms})
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	name := msg.RoomName
	if name == "" {
		name = "Battlefield"
	}
	if len(name) > maxRoomNameLen {
		name = name[:maxRoomNameLen]
	}

	room := c.hub.rooms.CreateRoom(name, msg.Terrain)
	if room == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "too many active rooms"}})
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"rid": room.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	name := msg.Name
	if name == "" {
		name = "Commander"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "room not found"}})
		return
	}
	vehicle, ok := room.Game.catalog.Vehicle(msg.Vehicle)
	if !ok {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "unknown vehicle"}})
		return
	}

	sessionID := GenerateID(16)
	if !room.Game.AddPlayer(sessionID, name, vehicle, msg.Loadout) {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "room full"}})
		return
	}
	c.sessionID = sessionID
	c.roomID = room.ID
	room.Game.SetClient(sessionID, c)

	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{
		"rid": room.ID,
		"sid": sessionID,
	}})
}

func (c *Client) handleTarget(data json.RawMessage) {
	if c.roomID == "" || c.sessionID == "" {
		return
	}
	var upd TargetUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(c.roomID)
	if room == nil {
		return
	}
	room.Game.UpdateTarget(c.sessionID, upd)
}

func (c *Client) handleFire(data json.RawMessage) {
	if c.roomID == "" || c.sessionID == "" {
		return
	}
	var msg FireMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(c.roomID)
	if room == nil {
		return
	}
	room.Game.QueueFire(c.sessionID, msg.Ammo)
}

func (c *Client) handleTerrain(data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	var msg TerrainMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(c.roomID)
	if room == nil {
		return
	}
	// Unknown names resolve to nil and degrade to the flat plane.
	room.Game.SetTerrain(room.Game.catalog.Terrain(msg.Name))
}

func (c *Client) handleLeave() {
	if c.roomID == "" {
		return
	}
	if tally, ok := c.hub.rooms.RemovePlayer(c.roomID, c.sessionID); ok {
		c.flushBattleStats(tally)
	}
	c.roomID = ""
	c.sessionID = ""
}

// flushBattleStats folds one battle's totals into the account's lifetime
// stats. Anonymous sessions persist nothing.
func (c *Client) flushBattleStats(tally BattleTally) {
	if c.hub.db == nil || c.authPlayerID == 0 {
		return
	}
	err := c.hub.db.AddBattleStats(c.authPlayerID, tally.Kills, tally.Deaths,
		tally.ShotsFired, tally.ShotsOnTank, tally.Playtime)
	if err != nil {
		log.Error().Err(err).Int64("player", c.authPlayerID).Msg("battle stats flush")
	}
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
	}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
	}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "invalid token"}})
		return
	}
	c.authPlayerID = id
	c.authUsername = username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    msg.Token,
		Username: username,
		PlayerID: id,
	}})
}

func (c *Client) handleGuest() {
	if c.hub.auth == nil || c.hub.db == nil {
		return
	}
	id, username, token, err := c.hub.auth.Guest()
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: username,
		PlayerID: id,
	}})
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "not authenticated"}})
		return
	}
	stats, err := c.hub.db.GetStats(c.authPlayerID)
	if err != nil || stats == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "profile not found"}})
		return
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username:    c.authUsername,
		Kills:       stats.Kills,
		Deaths:      stats.Deaths,
		ShotsFired:  stats.ShotsFired,
		ShotsOnTank: stats.ShotsOnTank,
		Playtime:    stats.Playtime,
	}})
}
