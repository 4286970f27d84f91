package main

import (
	"sync"
)

const maxRooms = 100

// Room is one battle: an id, a name, and its authoritative simulation.
type Room struct {
	ID      string
	Name    string
	Terrain string
	Game    *Game
}

// RoomManager handles creation and lookup of battle rooms.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	catalog  *CatalogProvider
	recorder *CombatRecorder
}

// NewRoomManager creates a manager. The catalog is shared by every room.
func NewRoomManager(catalog *CatalogProvider, recorder *CombatRecorder) *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*Room),
		catalog:  catalog,
		recorder: recorder,
	}
}

// CreateRoom spins up a new battle with the named terrain (unknown names
// fall back to the flat plane). Returns nil if the room limit is reached.
func (rm *RoomManager) CreateRoom(name, terrainName string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= maxRooms {
		return nil
	}

	game := NewGame(rm.catalog, rm.recorder)
	game.SetTerrain(rm.catalog.Terrain(terrainName))

	room := &Room{
		ID:      GenerateID(16),
		Name:    name,
		Terrain: terrainName,
		Game:    game,
	}
	rm.rooms[room.ID] = room
	go game.Run()
	return room
}

// GetRoom returns a room by ID.
func (rm *RoomManager) GetRoom(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// RemovePlayer removes a player from a room and tears the room down when
// it empties. The player's final battle tally is passed through so the
// caller can persist it.
func (rm *RoomManager) RemovePlayer(roomID, sessionID string) (BattleTally, bool) {
	rm.mu.RLock()
	room, ok := rm.rooms[roomID]
	rm.mu.RUnlock()
	if !ok {
		return BattleTally{}, false
	}
	tally, removed := room.Game.RemovePlayer(sessionID)

	if room.Game.PlayerCount() == 0 {
		room.Game.Stop()
		rm.mu.Lock()
		delete(rm.rooms, roomID)
		rm.mu.Unlock()
	}
	return tally, removed
}

// ListRooms returns info about all active rooms.
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	list := make([]RoomInfo, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		list = append(list, RoomInfo{
			ID:      room.ID,
			Name:    room.Name,
			Terrain: room.Terrain,
			Players: room.Game.PlayerCount(),
		})
	}
	return list
}

// StopAll shuts down every room.
func (rm *RoomManager) StopAll() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for id, room := range rm.rooms {
		room.Game.Stop()
		delete(rm.rooms, id)
	}
}
