package server

import (
	"log/slog"
	"sort"

	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/model"
)

// CreateRoom inserts a plain room, failing with ErrRoomExists if the name is taken
func (s *Server) CreateRoom(name string) (*chat.Room, error) {
	return s.insertRoom(name, func() *chat.Room {
		return chat.NewRoom(name, s.logger, s.metrics)
	})
}

// CreateAIRoom inserts a room whose messages trigger bot replies
func (s *Server) CreateAIRoom(name, prompt string) (*chat.Room, error) {
	if s.ai == nil {
		return nil, model.ErrAIUnavailable
	}
	return s.insertRoom(name, func() *chat.Room {
		return chat.NewAIRoom(name, prompt, s.ai, s.logger, s.metrics)
	})
}

func (s *Server) insertRoom(name string, build func() *chat.Room) (*chat.Room, error) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if _, ok := s.rooms[name]; ok {
		return nil, model.ErrRoomExists
	}
	room := build()
	s.rooms[name] = room
	s.metrics.SetRooms(len(s.rooms))

	s.logger.Info("room created", slog.String("room", name), slog.Bool("ai", room.IsAI()))
	return room, nil
}

// GetRoom returns the named room or ErrRoomNotFound
func (s *Server) GetRoom(name string) (*chat.Room, error) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	room, ok := s.rooms[name]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room, nil
}

// Rooms returns a snapshot of all rooms sorted by name
func (s *Server) Rooms() []*chat.Room {
	s.roomsMu.RLock()
	rooms := make([]*chat.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.roomsMu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name() < rooms[j].Name() })
	return rooms
}

// RoomCount returns the number of rooms
func (s *Server) RoomCount() int {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()
	return len(s.rooms)
}

// RoomForUser returns the last room the user joined, used only to restore a
// reconnecting session
func (s *Server) RoomForUser(username string) (string, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	room, ok := s.lastRoom[username]
	return room, ok
}

func (s *Server) SetRoomForUser(username, room string) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastRoom[username] = room
}

func (s *Server) ClearRoomForUser(username string) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	delete(s.lastRoom, username)
}
