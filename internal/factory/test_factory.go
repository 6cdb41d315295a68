package factory

import (
	"time"

	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/dependencies/clock"
	"github.com/mcoot/roomchat/internal/dependencies/mocks"
	"github.com/mcoot/roomchat/internal/server"
	"github.com/mcoot/roomchat/internal/services/credentials"
	"github.com/mcoot/roomchat/internal/storage"
	"github.com/mcoot/roomchat/internal/storage/memory"
	"github.com/mcoot/roomchat/internal/testutil"
)

// TestUsers are the credentials every TestApp starts with
var TestUsers = map[string]string{
	"alice": "secret",
	"bob":   "hunter2",
	"carol": "opensesame",
}

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App with in-memory storage and a mocked clock.
// A nil responder disables AI rooms.
func NewTestApp(responder chat.Responder) *TestApp {
	return NewTestAppWithStorage(func(clock.Clock) storage.Storage { return memory.New() }, responder)
}

// NewTestAppWithStorage is NewTestApp over a session store built on the mocked clock
func NewTestAppWithStorage(newStorage func(clock.Clock) storage.Storage, responder chat.Responder) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := testutil.NopLogger()
	store := newStorage(mockClock)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = "127.0.0.1:0"
	serverCfg.DrainTimeout = 200 * time.Millisecond

	app := newWithDependencies(
		store,
		mockClock,
		credentials.New(TestUsers, logger),
		responder,
		Config{ServerConfig: serverCfg, Router: RouterOptions{AdminToken: "admin-token"}},
		logger,
	)

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}
