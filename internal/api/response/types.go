package response

import "github.com/mcoot/roomchat/internal/model"

// Room represents a room in API responses
type Room struct {
	Name        string   `json:"name"`
	MemberCount int      `json:"member_count"`
	IsAI        bool     `json:"is_ai"`
	AIPrompt    string   `json:"ai_prompt,omitempty"`
	HistorySize int      `json:"history_size"`
	Members     []string `json:"members,omitempty"`
}

// RoomFromModel converts model.RoomInfo
func RoomFromModel(info model.RoomInfo) Room {
	return Room{
		Name:        info.Name,
		MemberCount: info.MemberCount,
		IsAI:        info.IsAI,
		AIPrompt:    info.AIPrompt,
		HistorySize: info.HistorySize,
	}
}

// RoomList is the response for listing rooms
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// Health is the response for the health endpoint
type Health struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}
