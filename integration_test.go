package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

// startTestServer spins up an httptest.Server with a real Hub, room
// manager and temp database, and returns it with its WebSocket URL.
func startTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "itest.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	catalog := NewCatalogProvider()
	rooms := NewRoomManager(catalog, nil)
	hub := NewHub(db, rooms)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub, catalog, nil))
	t.Cleanup(func() {
		rooms.StopAll()
		srv.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return srv, wsURL
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendMsg sends a typed envelope over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, _ := json.Marshal(Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// readUntilType reads messages until a JSON envelope of the wanted type
// arrives, skipping state frames and unrelated envelopes.
func readUntilType(t *testing.T, conn *websocket.Conn, want string) InEnvelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS waiting for %q: %v", want, err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		var env InEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.T == want {
			return env
		}
	}
	t.Fatalf("no %q envelope within the deadline", want)
	return InEnvelope{}
}

// readFrame reads messages until a binary state frame arrives.
func readFrame(t *testing.T, conn *websocket.Conn) StateFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS waiting for state frame: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var frame StateFrame
		if err := msgpack.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return frame
	}
	t.Fatal("no state frame within the deadline")
	return StateFrame{}
}

// createAndJoin creates a room and joins it. Returns the session id.
func createAndJoin(t *testing.T, conn *websocket.Conn, loadout map[string]int) string {
	t.Helper()
	sendMsg(t, conn, MsgCreate, CreateMsg{RoomName: "itest"})
	created := readUntilType(t, conn, MsgCreated)
	var room map[string]string
	json.Unmarshal(created.D, &room)

	sendMsg(t, conn, MsgJoin, JoinMsg{
		RoomID:  room["rid"],
		Name:    "gunner",
		Vehicle: "M4A1",
		Loadout: loadout,
	})
	joined := readUntilType(t, conn, MsgJoined)
	var ids map[string]string
	json.Unmarshal(joined.D, &ids)
	if ids["sid"] == "" {
		t.Fatal("join should return a session id")
	}
	return ids["sid"]
}

// ---------- tests ----------

func TestWebSocketJoinAndStateFrame(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)

	sid := createAndJoin(t, conn, map[string]int{"AP": 10})

	frame := readFrame(t, conn)
	if len(frame.Players.SIDs) != 1 || frame.Players.SIDs[0] != sid {
		t.Fatalf("frame should carry the joined player, got %+v", frame.Players.SIDs)
	}
	if frame.Players.HP[0] != 100 {
		t.Errorf("fresh vehicle should have 100 HP, got %v", frame.Players.HP[0])
	}
	if frame.Players.Ammo[0] != 10 {
		t.Errorf("loadout of 10 AP should show 10 rounds, got %d", frame.Players.Ammo[0])
	}
}

func TestWebSocketFireConsumesAmmo(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)

	createAndJoin(t, conn, map[string]int{"AP": 10})
	sendMsg(t, conn, MsgFire, FireMsg{Ammo: "AP"})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if len(frame.Players.Ammo) == 1 && frame.Players.Ammo[0] == 9 {
			return
		}
	}
	t.Fatal("ammo never dropped to 9 after firing")
}

func TestWebSocketGuestAuthAndProfile(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)

	sendMsg(t, conn, MsgGuest, nil)
	env := readUntilType(t, conn, MsgAuthOK)
	var ok AuthOKMsg
	json.Unmarshal(env.D, &ok)
	if ok.Token == "" || ok.PlayerID == 0 {
		t.Fatalf("guest auth should issue a token and id, got %+v", ok)
	}
	if !strings.HasPrefix(ok.Username, "Guest_") {
		t.Errorf("unexpected guest name %q", ok.Username)
	}

	sendMsg(t, conn, MsgProfile, nil)
	env = readUntilType(t, conn, MsgProfileData)
	var profile ProfileDataMsg
	json.Unmarshal(env.D, &profile)
	if profile.Username != ok.Username {
		t.Errorf("profile should belong to the guest, got %q", profile.Username)
	}
	if profile.Kills != 0 || profile.ShotsFired != 0 {
		t.Errorf("fresh guest should have zeroed stats, got %+v", profile)
	}
}

func TestHTTPEndpoints(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v (%v)", err, resp)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/vehicles")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("vehicles: %v (%v)", err, resp)
	}
	var vehicles []VehicleDefinition
	if err := json.NewDecoder(resp.Body).Decode(&vehicles); err != nil {
		t.Fatalf("decode vehicles: %v", err)
	}
	resp.Body.Close()
	if len(vehicles) == 0 {
		t.Error("vehicle roster should not be empty")
	}
}
