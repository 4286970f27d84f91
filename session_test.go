package main

import "testing"

func TestRoomManagerCreateAndGet(t *testing.T) {
	rm := NewRoomManager(NewCatalogProvider(), nil)
	room := rm.CreateRoom("Test Arena", "")
	if room == nil {
		t.Fatal("room creation should succeed")
	}
	defer room.Game.Stop()

	if rm.GetRoom(room.ID) != room {
		t.Error("lookup should return the created room")
	}
	if rm.GetRoom("missing") != nil {
		t.Error("unknown room id should return nil")
	}
}

func TestRoomManagerRemovesEmptyRoom(t *testing.T) {
	rm := NewRoomManager(NewCatalogProvider(), nil)
	room := rm.CreateRoom("Test Arena", "")
	if room == nil {
		t.Fatal("room creation should succeed")
	}

	def, _ := rm.catalog.Vehicle("M4A1")
	room.Game.AddPlayer("s1", "p", def, nil)
	rm.RemovePlayer(room.ID, "s1")

	if rm.GetRoom(room.ID) != nil {
		t.Error("emptied room should be torn down")
	}
}

func TestRoomManagerListRooms(t *testing.T) {
	rm := NewRoomManager(NewCatalogProvider(), nil)
	a := rm.CreateRoom("A", "")
	b := rm.CreateRoom("B", "dunes")
	defer rm.StopAll()

	list := rm.ListRooms()
	if len(list) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(list))
	}
	seen := map[string]bool{}
	for _, info := range list {
		seen[info.ID] = true
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Error("listing should include every active room")
	}
}

func TestGenerateIDLength(t *testing.T) {
	id := GenerateID(16)
	if len(id) != 32 {
		t.Errorf("16 bytes should encode to 32 hex chars, got %d", len(id))
	}
	if GenerateID(16) == id {
		t.Error("ids should not repeat")
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 {
		t.Error("in-range value should pass through")
	}
	if Clamp(-1, 0, 10) != 0 {
		t.Error("below range should clamp to min")
	}
	if Clamp(11, 0, 10) != 10 {
		t.Error("above range should clamp to max")
	}
}
