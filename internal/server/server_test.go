package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/dependencies/mocks"
	"github.com/mcoot/roomchat/internal/model"
	"github.com/mcoot/roomchat/internal/services/credentials"
	"github.com/mcoot/roomchat/internal/services/session"
	"github.com/mcoot/roomchat/internal/storage/memory"
	"github.com/mcoot/roomchat/internal/testutil"
	"github.com/mcoot/roomchat/internal/transport"
)

type echoResponder struct{}

func (echoResponder) Respond(_ context.Context, basePrompt string, history []string) (string, error) {
	return basePrompt + " saw " + history[len(history)-1], nil
}

type stubMember struct {
	name   string
	closed atomic.Bool
}

func (m *stubMember) Username() string { return m.name }
func (m *stubMember) Send(string) error { return nil }
func (m *stubMember) Connected() bool { return !m.closed.Load() }
func (m *stubMember) disconnect() { m.closed.Store(true) }

type ServerSuite struct {
	suite.Suite
	creds  *credentials.Store
	server *Server
	ln     net.Listener
	served chan error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	cfg := DefaultConfig()
	cfg.DrainTimeout = 200 * time.Millisecond
	s.server, s.creds = s.newServer(cfg, echoResponder{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.ln = ln
	s.served = make(chan error, 1)
	srv, served := s.server, s.served
	go func() { served <- srv.Serve(ln) }()
}

func (s *ServerSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

func (s *ServerSuite) newServer(cfg Config, ai chat.Responder) (*Server, *credentials.Store) {
	creds := credentials.New(map[string]string{
		"alice": "secret",
		"bob":   "hunter2",
	}, testutil.NopLogger())
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	sessions := session.New(memory.New(), clk, session.DefaultConfig(), testutil.NopLogger())
	return New(cfg, creds, sessions, ai, nil, testutil.NopLogger(), nil), creds
}

func (s *ServerSuite) dial() *testutil.LineClient {
	conn, err := net.Dial("tcp", s.ln.Addr().String())
	s.Require().NoError(err)
	c := testutil.NewLineClient(s.T(), conn)
	c.ExpectPrefix("Welcome to the chat server!")
	return c
}

// Registry tests

func (s *ServerSuite) TestDefaultRoomCreated() {
	room, err := s.server.GetRoom("general")
	s.Require().NoError(err)
	s.Equal("general", room.Name())
	s.False(room.IsAI())
}

func (s *ServerSuite) TestCreateRoomRejectsDuplicate() {
	_, err := s.server.CreateRoom("general")
	s.ErrorIs(err, model.ErrRoomExists)

	_, err = s.server.CreateAIRoom("general", "prompt")
	s.ErrorIs(err, model.ErrRoomExists)
}

func (s *ServerSuite) TestCreateAIRoom() {
	room, err := s.server.CreateAIRoom("bots", "be nice")
	s.Require().NoError(err)
	s.True(room.IsAI())
	s.Equal("be nice", room.AIPrompt())
}

func (s *ServerSuite) TestCreateAIRoomWithoutResponder() {
	srv, _ := s.newServer(DefaultConfig(), nil)
	defer srv.Shutdown(context.Background())

	_, err := srv.CreateAIRoom("bots", "be nice")
	s.ErrorIs(err, model.ErrAIUnavailable)
}

func (s *ServerSuite) TestGetRoomNotFound() {
	_, err := s.server.GetRoom("nowhere")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ServerSuite) TestRoomsSortedSnapshot() {
	_, _ = s.server.CreateRoom("zeta")
	_, _ = s.server.CreateRoom("alpha")

	rooms := s.server.Rooms()
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.Name())
	}
	s.Equal([]string{"alpha", "general", "zeta"}, names)
	s.Equal(3, s.server.RoomCount())
}

func (s *ServerSuite) TestConcurrentCreateHasOneWinner() {
	var wg sync.WaitGroup
	var wins atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.server.CreateRoom("race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *ServerSuite) TestRoomForUser() {
	_, ok := s.server.RoomForUser("alice")
	s.False(ok)

	s.server.SetRoomForUser("alice", "general")
	room, ok := s.server.RoomForUser("alice")
	s.True(ok)
	s.Equal("general", room)

	s.server.ClearRoomForUser("alice")
	_, ok = s.server.RoomForUser("alice")
	s.False(ok)
}

func (s *ServerSuite) TestSweepRemovesDisconnectedMembers() {
	general, _ := s.server.GetRoom("general")
	other, _ := s.server.CreateRoom("other")

	gone := &stubMember{name: "gone"}
	here := &stubMember{name: "here"}
	general.AddMember(gone)
	general.AddMember(here)
	other.AddMember(&stubMember{name: "also-gone"})

	gone.disconnect()
	for _, m := range other.Members() {
		m.(*stubMember).disconnect()
	}

	s.Equal(2, s.server.Sweep())
	s.Equal([]string{"here"}, general.Usernames())
	s.Equal(0, other.MemberCount())
}

// Connection tests

func (s *ServerSuite) TestChatBetweenClients() {
	alice := s.dial()
	alice.Login("alice", "secret")
	alice.Send("/join general")
	alice.Expect("You joined room: general")

	bob := s.dial()
	bob.Login("bob", "hunter2")
	bob.Send("/join general")
	bob.Expect("You joined room: general", "--- Recent messages ---", "alice has joined the room", "--- End of recent messages ---")
	alice.Expect("bob has joined the room")

	bob.Send("hello alice")
	bob.Expect("bob: hello alice")
	alice.Expect("bob: hello alice")
}

func (s *ServerSuite) TestAIRoomRepliesToEveryone() {
	alice := s.dial()
	alice.Login("alice", "secret")
	alice.Send("/create bots Answer briefly.")
	alice.Expect("AI room 'bots' created with prompt: Answer briefly.")
	alice.Send("/join bots")
	alice.Expect("You joined room: bots")

	alice.Send("hi bot")
	alice.Expect("alice: hi bot", "Bot: Answer briefly. saw alice: hi bot")

	room, err := s.server.GetRoom("bots")
	s.Require().NoError(err)
	room.Wait()
	s.Equal([]string{"alice has joined the room", "alice: hi bot", "Bot: Answer briefly. saw alice: hi bot"}, room.History())
}

func (s *ServerSuite) TestListShowsAIRooms() {
	_, err := s.server.CreateAIRoom("bots", "p")
	s.Require().NoError(err)

	alice := s.dial()
	alice.Login("alice", "secret")
	alice.Send("/list")
	alice.Expect("Available rooms:", "- bots (0 members) [AI]", "- general (0 members)")
}

func (s *ServerSuite) TestHandleConnOverPipe() {
	serverSide, clientSide := net.Pipe()
	go s.server.HandleConn(transport.NewLineConn(serverSide, transport.DefaultConfig()))

	c := testutil.NewLineClient(s.T(), clientSide)
	c.ExpectPrefix("Welcome to the chat server!")
	c.Login("alice", "secret")
	s.Eventually(func() bool { return s.server.ConnCount() == 1 }, time.Second, 10*time.Millisecond)
}

// Shutdown tests

func (s *ServerSuite) TestShutdownWithoutClients() {
	s.NoError(s.server.Shutdown(context.Background()))
	s.ErrorIs(<-s.served, ErrServerClosed)
}

func (s *ServerSuite) TestShutdownNotifiesAndForcesClose() {
	alice := s.dial()
	alice.Login("alice", "secret")

	err := s.server.Shutdown(context.Background())
	s.True(errors.Is(err, context.DeadlineExceeded))

	alice.Expect(ShutdownNotice)
	alice.ExpectClosed()
	s.Eventually(func() bool { return !s.creds.IsLoggedIn("alice") }, time.Second, 10*time.Millisecond)
}

func (s *ServerSuite) TestShutdownDrainsWhenClientsLeave() {
	alice := s.dial()
	alice.Login("alice", "secret")

	go func() {
		alice.Expect(ShutdownNotice)
		alice.Send("/exit")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.NoError(s.server.Shutdown(ctx))
}

func (s *ServerSuite) TestShutdownIsIdempotent() {
	s.NoError(s.server.Shutdown(context.Background()))
	s.NoError(s.server.Shutdown(context.Background()))
}

func (s *ServerSuite) TestHandleConnAfterShutdownCloses() {
	s.Require().NoError(s.server.Shutdown(context.Background()))

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	conn := transport.NewLineConn(serverSide, transport.DefaultConfig())
	s.server.HandleConn(conn)
	s.True(conn.Closed())
}
