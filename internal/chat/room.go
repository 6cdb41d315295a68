package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/mcoot/roomchat/internal/metrics"
	"github.com/mcoot/roomchat/internal/model"
)

const (
	// MaxHistory is the number of lines a room retains
	MaxHistory = 100

	// BotPrefix labels AI replies in history and on the wire
	BotPrefix = "Bot: "

	// BotErrorMessage is sent to the triggering member when generation fails
	BotErrorMessage = "Bot error: Unable to generate response. Please try again later."
)

// Room is a named channel with a member set and a bounded history.
// Members and history share one RWMutex; delivery happens on snapshots outside the lock.
type Room struct {
	name     string
	aiPrompt string
	ai       Responder

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	members map[Member]struct{}
	history []string

	// in-flight AI generations
	pending sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRoom creates a plain room
func NewRoom(name string, logger *slog.Logger, m *metrics.Metrics) *Room {
	return newRoom(name, "", nil, logger, m)
}

// NewAIRoom creates a room whose chat messages trigger a bot reply built from prompt
func NewAIRoom(name, prompt string, responder Responder, logger *slog.Logger, m *metrics.Metrics) *Room {
	r := newRoom(name, prompt, responder, logger, m)
	r.logger.Info("ai room created", slog.String("prompt", prompt))
	return r
}

func newRoom(name, prompt string, responder Responder, logger *slog.Logger, m *metrics.Metrics) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		name:     name,
		aiPrompt: prompt,
		ai:       responder,
		logger:   logger.With(slog.String("room", name)),
		metrics:  m,
		members:  make(map[Member]struct{}),
		history:  make([]string, 0, MaxHistory),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Name returns the room name
func (r *Room) Name() string {
	return r.name
}

// IsAI reports whether the room generates bot replies
func (r *Room) IsAI() bool {
	return r.ai != nil
}

// AIPrompt returns the base prompt for bot replies
func (r *Room) AIPrompt() string {
	return r.aiPrompt
}

// AddMember adds m and reports whether it was newly inserted
func (r *Room) AddMember(m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[m]; ok {
		return false
	}
	r.members[m] = struct{}{}
	return true
}

// RemoveMember removes m and reports whether it was present
func (r *Room) RemoveMember(m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[m]; !ok {
		return false
	}
	delete(r.members, m)
	return true
}

// HasMember reports whether m is in the room
func (r *Room) HasMember(m Member) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[m]
	return ok
}

// Members returns a snapshot of the member set
func (r *Room) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.members))
	for m := range r.members {
		members = append(members, m)
	}
	return members
}

// MemberCount returns the number of members
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Usernames returns the sorted usernames of current members
func (r *Room) Usernames() []string {
	members := r.Members()
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username())
	}
	sort.Strings(names)
	return names
}

// Broadcast records a chat message and delivers it to every connected member except sender.
// In an AI room it also starts a bot reply from the history as it stood right after the append.
func (r *Room) Broadcast(message string, sender Member) {
	r.broadcast(message, sender, r.IsAI(), metrics.KindChat)
}

// Announce behaves like Broadcast but never triggers a bot reply.
// It is used for join, leave and reconnect notices.
func (r *Room) Announce(message string, sender Member) {
	r.broadcast(message, sender, false, metrics.KindNotice)
}

func (r *Room) broadcast(message string, sender Member, triggerAI bool, kind string) {
	r.CleanDisconnectedClients()

	snapshot := r.appendHistory(message, triggerAI)
	r.metrics.MessageAppended(kind)

	for _, m := range r.Members() {
		if m == sender || !m.Connected() {
			continue
		}
		if err := m.Send(message); err != nil {
			// Reaped on the next cleanup pass
			r.logger.Warn("failed to deliver message",
				slog.String("username", m.Username()),
				slog.String("error", err.Error()))
		}
	}

	// Started after delivery so members see the message before the reply
	if triggerAI {
		r.startReply(snapshot, sender)
	}
}

// appendHistory adds a line, evicting the oldest past MaxHistory.
// When snapshot is set it returns a copy of the history taken under the same lock.
func (r *Room) appendHistory(line string, snapshot bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, line)
	if len(r.history) > MaxHistory {
		r.history = append(r.history[:0], r.history[len(r.history)-MaxHistory:]...)
	}

	if !snapshot {
		return nil
	}
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Room) startReply(history []string, sender Member) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		r.deliverReply(r.generate(history), sender)
	}()
}

func (r *Room) generate(history []string) Reply {
	text, err := r.ai.Respond(r.ctx, r.aiPrompt, history)
	return Reply{Text: text, Err: err}
}

// deliverReply joins a finished generation back into the room
func (r *Room) deliverReply(reply Reply, sender Member) {
	r.metrics.AIRequest(reply.Err == nil)

	if reply.Err != nil {
		r.logger.Warn("ai reply failed", slog.String("error", reply.Err.Error()))
		if sender != nil && sender.Connected() {
			if err := sender.Send(BotErrorMessage); err != nil {
				r.logger.Warn("failed to deliver bot error",
					slog.String("username", sender.Username()),
					slog.String("error", err.Error()))
			}
		}
		return
	}

	formatted := BotPrefix + reply.Text
	r.appendHistory(formatted, false)
	r.metrics.MessageAppended(metrics.KindBot)

	r.CleanDisconnectedClients()
	for _, m := range r.Members() {
		if !m.Connected() {
			continue
		}
		if err := m.Send(formatted); err != nil {
			r.logger.Warn("failed to deliver bot reply",
				slog.String("username", m.Username()),
				slog.String("error", err.Error()))
		}
	}
}

// CleanDisconnectedClients removes members whose transport has closed and returns how many were removed
func (r *Room) CleanDisconnectedClients() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for m := range r.members {
		if m.Connected() {
			continue
		}
		delete(r.members, m)
		removed++
		r.logger.Info("removed disconnected member", slog.String("username", m.Username()))
	}
	return removed
}

// GetRecentMessages returns the last min(n, len) lines in chronological order
func (r *Room) GetRecentMessages(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	start := max(0, len(r.history)-n)
	out := make([]string, len(r.history)-start)
	copy(out, r.history[start:])
	return out
}

// History returns a copy of the full retained history
func (r *Room) History() []string {
	return r.GetRecentMessages(MaxHistory)
}

// Info returns a snapshot view of the room
func (r *Room) Info() model.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return model.RoomInfo{
		Name:        r.name,
		MemberCount: len(r.members),
		IsAI:        r.ai != nil,
		AIPrompt:    r.aiPrompt,
		HistorySize: len(r.history),
	}
}

// Wait blocks until in-flight bot replies have been delivered
func (r *Room) Wait() {
	r.pending.Wait()
}

// Close cancels in-flight bot replies; the room stays usable for plain chat
func (r *Room) Close() {
	r.cancel()
}
