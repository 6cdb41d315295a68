package handler

import "fmt"

// Lines the server writes to clients. Clients match on the AUTH_OK:, AUTH_FAIL:,
// "You joined room:" and "You left room:" prefixes, so those must stay stable.
const (
	SessionTokenPrefix = "SESSION_TOKEN:"

	msgWelcome = "Welcome to the chat server! Please login using: /login <username> <password>"
	msgGoodbye = "Goodbye!"

	msgAuthInvalidFormat  = "AUTH_FAIL: Invalid format. Use: /login <username> <password>"
	msgAuthInvalidCreds   = "AUTH_FAIL: Invalid credentials or user already logged in"
	msgAuthInvalidSession = "AUTH_FAIL: Invalid or expired session token"
	msgAuthLoginFirst     = "AUTH_FAIL: Please login first using: /login <username> <password>"
	msgAuthTooMany        = "AUTH_FAIL: Too many failed login attempts. Connection closed."
	msgAuthUnavailable    = "AUTH_FAIL: Unable to create session. Please try again."

	msgHelpHint      = "Type /help to see available commands"
	msgLoggedOut     = "You have been logged out."
	msgAlreadyAuthed = "ERROR: You are already logged in. Use /logout first"
	msgNotInRoom     = "ERROR: You are not in a room. Use /join <room_name> to join a room"
	msgCreateUsage   = "ERROR: Usage: /create <room_name> [ai_prompt]"
	msgJoinUsage     = "ERROR: Usage: /join <room_name>"
	msgTooFast       = "ERROR: You are sending messages too quickly. Please slow down."
	msgAIUnavailable = "ERROR: AI rooms are not available on this server"
	msgInternal      = "ERROR: Something went wrong. Please try again."
	msgNoRooms       = "No rooms available. Use /create <room_name> to create one"
	msgRoomsHeader   = "Available rooms:"
	msgHistoryHeader = "--- Recent messages ---"
	msgHistoryFooter = "--- End of recent messages ---"
)

var helpLines = []string{
	"Available commands:",
	"  /list                        - List available rooms",
	"  /create <room> [ai_prompt]   - Create a room; with a prompt it becomes an AI room",
	"  /join <room>                 - Join a room",
	"  /leave                       - Leave the current room",
	"  /logout                      - Log out and return to the login prompt",
	"  /exit                        - Disconnect from the server",
	"  /help                        - Show this help",
	"Any other text is sent as a message to your current room.",
}

func msgLoginOK(username, token string) string {
	return fmt.Sprintf("AUTH_OK: Welcome, %s! Your session token: %s", username, token)
}

func msgWelcomeBack(username string) string {
	return fmt.Sprintf("AUTH_OK: Welcome back, %s!", username)
}

func msgWelcomeBackToRoom(username, room string) string {
	return fmt.Sprintf("AUTH_OK: Welcome back, %s! You have been reconnected to room: %s", username, room)
}

func msgJoined(room string) string { return "You joined room: " + room }
func msgLeft(room string) string { return "You left room: " + room }
func msgAlreadyInRoom(room string) string { return "You are already in room: " + room }

func msgRoomExists(room string) string {
	return fmt.Sprintf("ERROR: Room '%s' already exists", room)
}

func msgRoomNotFound(room string) string {
	return fmt.Sprintf("ERROR: Room '%s' does not exist", room)
}

func msgRoomCreated(room string) string {
	return fmt.Sprintf("Room '%s' created.", room)
}

func msgAIRoomCreated(room, prompt string) string {
	return fmt.Sprintf("AI room '%s' created with prompt: %s", room, prompt)
}

func msgUnknownCommand(verb string) string {
	return fmt.Sprintf("ERROR: Unknown command: %s. Type /help for available commands", verb)
}

func msgRoomListEntry(name string, members int, ai bool) string {
	line := fmt.Sprintf("- %s (%d members)", name, members)
	if ai {
		line += " [AI]"
	}
	return line
}

func noticeJoined(username string) string { return username + " has joined the room" }
func noticeLeft(username string) string { return username + " has left the room" }
func noticeReconnected(username string) string { return username + " has reconnected to the room" }

func chatLine(username, text string) string {
	return username + ": " + text
}
