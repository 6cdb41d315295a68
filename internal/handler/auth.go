package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/roomchat/internal/metrics"
	"github.com/mcoot/roomchat/internal/model"
)

// authenticate reads lines until the client logs in, exits, disconnects or
// runs out of attempts
func (h *Handler) authenticate(ctx context.Context, c *client, logger *slog.Logger) state {
	attempts := 0
	for attempts < h.cfg.MaxLoginAttempts {
		line, err := c.conn.ReadLine()
		if err != nil {
			return stateDisconnected
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		verb, _ := splitVerb(line)
		switch {
		case strings.HasPrefix(line, SessionTokenPrefix):
			token := strings.TrimSpace(strings.TrimPrefix(line, SessionTokenPrefix))
			if h.loginWithToken(ctx, c, token, logger) {
				return stateAuthenticated
			}
		case verb == "/login":
			if h.loginWithPassword(ctx, c, line, logger) {
				return stateAuthenticated
			}
		case verb == "/exit":
			c.send(msgGoodbye)
			return stateDisconnected
		default:
			h.metrics.AuthFailed(metrics.ReasonNotLoggedIn)
			c.send(msgAuthLoginFirst)
		}
		attempts++
	}

	logger.Warn("too many failed login attempts", slog.Int("attempts", attempts))
	c.send(msgAuthTooMany)
	return stateDisconnected
}

// loginWithPassword handles "/login <username> <password>". The password is
// the remainder of the line and may contain spaces.
func (h *Handler) loginWithPassword(ctx context.Context, c *client, line string, logger *slog.Logger) bool {
	parts := splitArgs(line, 3)
	if len(parts) < 3 {
		h.metrics.AuthFailed(metrics.ReasonFormat)
		c.send(msgAuthInvalidFormat)
		return false
	}
	username, password := parts[1], parts[2]

	if err := h.creds.Login(username, password); err != nil {
		// Every cause gets the same reply
		h.metrics.AuthFailed(metrics.ReasonCredentials)
		logger.Info("login rejected",
			slog.String("username", username),
			slog.String("error", err.Error()))
		c.send(msgAuthInvalidCreds)
		return false
	}

	session, err := h.sessions.CreateSession(ctx, username)
	if err != nil {
		// Undo the login flag so the user is not locked out
		h.creds.Logout(username)
		logger.Error("failed to create session",
			slog.String("username", username),
			slog.String("error", err.Error()))
		c.send(msgAuthUnavailable)
		return false
	}

	c.setIdentity(username, session.Token)
	logger.Info("user logged in", slog.String("username", username))
	c.send(msgLoginOK(username, session.Token), msgHelpHint)
	return true
}

// loginWithToken handles "SESSION_TOKEN:<token>" and restores the user's last room
func (h *Handler) loginWithToken(ctx context.Context, c *client, token string, logger *slog.Logger) bool {
	username, err := h.sessions.ValidateSession(ctx, token)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidSession) {
			logger.Error("failed to validate session", slog.String("error", err.Error()))
		}
		h.metrics.AuthFailed(metrics.ReasonSession)
		c.send(msgAuthInvalidSession)
		return false
	}

	// Keeps a user to one live connection even when reconnecting by token
	if !h.creds.Claim(username) {
		h.metrics.AuthFailed(metrics.ReasonSession)
		logger.Info("session reconnect rejected, user already active", slog.String("username", username))
		c.send(msgAuthInvalidSession)
		return false
	}

	c.setIdentity(username, token)
	logger.Info("user reconnected with session", slog.String("username", username))

	roomName, ok := h.rooms.RoomForUser(username)
	if !ok {
		c.send(msgWelcomeBack(username), msgHelpHint)
		return true
	}

	room, err := h.rooms.GetRoom(roomName)
	if err != nil {
		h.rooms.ClearRoomForUser(username)
		c.send(msgWelcomeBack(username), msgHelpHint)
		return true
	}

	room.AddMember(c)
	c.setRoom(room)
	c.send(msgWelcomeBackToRoom(username, roomName))
	h.replayHistory(c, room)
	room.Announce(noticeReconnected(username), c)
	return true
}
