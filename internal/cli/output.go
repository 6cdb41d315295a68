package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Room:
		o.printRoom(v)
	case RoomList:
		o.printRoomList(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Room response type (matches API)
type Room struct {
	Name        string   `json:"name"`
	MemberCount int      `json:"member_count"`
	IsAI        bool     `json:"is_ai"`
	AIPrompt    string   `json:"ai_prompt,omitempty"`
	HistorySize int      `json:"history_size"`
	Members     []string `json:"members,omitempty"`
}

// RoomList response type
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

func (o *Output) printRoom(r Room) {
	_, _ = fmt.Fprintf(o.w, "Room: %s\n", r.Name)
	if r.IsAI {
		_, _ = fmt.Fprintf(o.w, "AI Prompt: %s\n", r.AIPrompt)
	}
	_, _ = fmt.Fprintf(o.w, "History: %d messages\n", r.HistorySize)
	_, _ = fmt.Fprintf(o.w, "Members (%d):", r.MemberCount)
	if len(r.Members) > 0 {
		_, _ = fmt.Fprintf(o.w, " %s", strings.Join(r.Members, ", "))
	}
	_, _ = fmt.Fprintln(o.w)
}

func (o *Output) printRoomList(l RoomList) {
	if len(l.Rooms) == 0 {
		_, _ = fmt.Fprintln(o.w, "No rooms")
		return
	}
	for _, r := range l.Rooms {
		aiStr := ""
		if r.IsAI {
			aiStr = " [AI]"
		}
		_, _ = fmt.Fprintf(o.w, "- %s (%d members)%s\n", r.Name, r.MemberCount, aiStr)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	_, _ = fmt.Fprintf(o.w, "Rooms: %d\n", h.Rooms)
}
