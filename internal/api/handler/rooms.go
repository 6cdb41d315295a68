package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/roomchat/internal/api/apierr"
	"github.com/mcoot/roomchat/internal/api/request"
	"github.com/mcoot/roomchat/internal/api/response"
	"github.com/mcoot/roomchat/internal/chat"
)

// RoomRegistry is the read and create surface of the chat server's rooms
type RoomRegistry interface {
	Rooms() []*chat.Room
	GetRoom(name string) (*chat.Room, error)
	CreateRoom(name string) (*chat.Room, error)
	CreateAIRoom(name, prompt string) (*chat.Room, error)
}

// RoomHandler handles room endpoints
type RoomHandler struct {
	rooms RoomRegistry
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(rooms RoomRegistry) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, _ *http.Request) {
	rooms := h.rooms.Rooms()
	out := response.RoomList{Rooms: make([]response.Room, 0, len(rooms))}
	for _, r := range rooms {
		out.Rooms = append(out.Rooms, response.RoomFromModel(r.Info()))
	}
	response.JSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/rooms/{name}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.GetRoom(mux.Vars(r)["name"])
	if err != nil {
		WriteError(w, err)
		return
	}

	out := response.RoomFromModel(room.Info())
	out.Members = room.Usernames()
	response.JSON(w, http.StatusOK, out)
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierr.NewInvalidRequestError("Invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.ContainsFunc(req.Name, isSpace) {
		WriteError(w, apierr.NewInvalidRequestError("Room name must be a single non-empty word"))
		return
	}

	var (
		room *chat.Room
		err  error
	)
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		room, err = h.rooms.CreateAIRoom(req.Name, prompt)
	} else {
		room, err = h.rooms.CreateRoom(req.Name)
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RoomFromModel(room.Info()))
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
