package model

// RoomInfo is a point-in-time view of a room, safe to hand out of the room's lock
type RoomInfo struct {
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	IsAI        bool   `json:"is_ai"`
	AIPrompt    string `json:"ai_prompt,omitempty"`
	HistorySize int    `json:"history_size"`
}
