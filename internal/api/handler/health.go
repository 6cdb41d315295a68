package handler

import (
	"net/http"

	"github.com/mcoot/roomchat/internal/api/response"
)

// RoomCounter reports how many rooms exist
type RoomCounter interface {
	RoomCount() int
}

// Health handles GET /api/v1/health
func Health(rooms RoomCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{
			Status: "ok",
			Rooms:  rooms.RoomCount(),
		})
	}
}
