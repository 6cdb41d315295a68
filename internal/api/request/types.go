package request

// CreateRoomRequest is the request body for creating a room.
// A non-empty Prompt creates an AI room.
type CreateRoomRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt,omitempty"`
}
