package model

import "errors"

// Common errors used across the application
var (
	// Credential errors
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyLoggedIn    = errors.New("user is already logged in")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid or expired session")

	// Room errors
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomExists    = errors.New("room already exists")
	ErrAIUnavailable = errors.New("ai rooms are not available")

	// AI errors
	ErrGenerationFailed = errors.New("response generation failed")
)
