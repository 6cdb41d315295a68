package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/model"
)

// processCommands dispatches lines from an authenticated client until it
// logs out, exits or disconnects
func (h *Handler) processCommands(ctx context.Context, c *client, logger *slog.Logger) state {
	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			return stateDisconnected
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			h.chat(c, line)
			continue
		}

		verb, args := splitVerb(line)
		switch verb {
		case "/list":
			h.listRooms(c)
		case "/create":
			h.createRoom(c, args, logger)
		case "/join":
			h.joinRoom(c, args, logger)
		case "/leave":
			h.leaveRoom(c, logger)
		case "/logout":
			h.logout(ctx, c, logger)
			return stateUnauthenticated
		case "/exit":
			c.send(msgGoodbye)
			return stateDisconnected
		case "/help":
			c.send(helpLines...)
		case "/login":
			c.send(msgAlreadyAuthed)
		default:
			c.send(msgUnknownCommand(splitArgs(line, 2)[0]))
		}
	}
}

func (h *Handler) chat(c *client, text string) {
	room := c.currentRoom()
	if room == nil {
		c.send(msgNotInRoom)
		return
	}
	if !c.limiter.Allow() {
		c.send(msgTooFast)
		return
	}
	line := chatLine(c.Username(), text)
	c.send(line)
	room.Broadcast(line, c)
}

func (h *Handler) listRooms(c *client) {
	rooms := h.rooms.Rooms()
	if len(rooms) == 0 {
		c.send(msgNoRooms)
		return
	}
	lines := make([]string, 0, len(rooms)+1)
	lines = append(lines, msgRoomsHeader)
	for _, r := range rooms {
		info := r.Info()
		lines = append(lines, msgRoomListEntry(info.Name, info.MemberCount, info.IsAI))
	}
	c.send(lines...)
}

func (h *Handler) createRoom(c *client, args string, logger *slog.Logger) {
	parts := splitArgs(args, 2)
	if len(parts) == 0 {
		c.send(msgCreateUsage)
		return
	}
	name := parts[0]

	var err error
	if len(parts) == 2 {
		prompt := parts[1]
		_, err = h.rooms.CreateAIRoom(name, prompt)
		if err == nil {
			logger.Info("ai room created", slog.String("room", name), slog.String("username", c.Username()))
			c.send(msgAIRoomCreated(name, prompt))
			return
		}
	} else {
		_, err = h.rooms.CreateRoom(name)
		if err == nil {
			logger.Info("room created", slog.String("room", name), slog.String("username", c.Username()))
			c.send(msgRoomCreated(name))
			return
		}
	}

	switch {
	case errors.Is(err, model.ErrRoomExists):
		c.send(msgRoomExists(name))
	case errors.Is(err, model.ErrAIUnavailable):
		c.send(msgAIUnavailable)
	default:
		logger.Error("failed to create room", slog.String("room", name), slog.String("error", err.Error()))
		c.send(msgInternal)
	}
}

func (h *Handler) joinRoom(c *client, args string, logger *slog.Logger) {
	parts := splitArgs(args, 2)
	if len(parts) != 1 {
		c.send(msgJoinUsage)
		return
	}
	name := parts[0]

	target, err := h.rooms.GetRoom(name)
	if err != nil {
		c.send(msgRoomNotFound(name))
		return
	}

	current := c.currentRoom()
	if current == target {
		c.send(msgAlreadyInRoom(name))
		return
	}

	username := c.Username()
	if current != nil {
		h.departRoom(c, current)
	}

	target.AddMember(c)
	c.setRoom(target)
	h.rooms.SetRoomForUser(username, name)
	logger.Info("user joined room", slog.String("username", username), slog.String("room", name))

	c.send(msgJoined(name))
	h.replayHistory(c, target)
	target.Announce(noticeJoined(username), c)
}

func (h *Handler) leaveRoom(c *client, logger *slog.Logger) {
	current := c.currentRoom()
	if current == nil {
		c.send(msgNotInRoom)
		return
	}
	username := c.Username()
	h.departRoom(c, current)
	h.rooms.ClearRoomForUser(username)
	logger.Info("user left room", slog.String("username", username), slog.String("room", current.Name()))
	c.send(msgLeft(current.Name()))
}

// departRoom removes c from room and tells the remaining members
func (h *Handler) departRoom(c *client, room *chat.Room) {
	room.Announce(noticeLeft(c.Username()), c)
	room.RemoveMember(c)
	c.setRoom(nil)
}

func (h *Handler) logout(ctx context.Context, c *client, logger *slog.Logger) {
	username := c.Username()
	if current := c.currentRoom(); current != nil {
		h.departRoom(c, current)
	}
	h.rooms.ClearRoomForUser(username)

	if err := h.sessions.InvalidateSession(ctx, c.sessionToken()); err != nil {
		logger.Error("failed to invalidate session",
			slog.String("username", username),
			slog.String("error", err.Error()))
	}
	h.creds.Logout(username)
	c.clearIdentity()

	logger.Info("user logged out", slog.String("username", username))
	c.send(msgLoggedOut, msgWelcome)
}

func (h *Handler) replayHistory(c *client, room *chat.Room) {
	recent := room.GetRecentMessages(h.cfg.HistoryReplay)
	if len(recent) == 0 {
		return
	}
	lines := make([]string, 0, len(recent)+2)
	lines = append(lines, msgHistoryHeader)
	lines = append(lines, recent...)
	lines = append(lines, msgHistoryFooter)
	c.send(lines...)
}

// splitVerb returns the lower-cased first word and the trimmed remainder
func splitVerb(line string) (string, string) {
	parts := splitArgs(line, 2)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return strings.ToLower(parts[0]), ""
	default:
		return strings.ToLower(parts[0]), parts[1]
	}
}

// splitArgs splits s on runs of whitespace into at most n fields; the last
// field keeps any inner whitespace
func splitArgs(s string, n int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for s != "" && len(out) < n-1 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
