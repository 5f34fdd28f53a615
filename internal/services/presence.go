package services

import (
	"sync"
	"time"

	"crewlink/internal/models"
)

// DefaultTypingTTL is how long a typing signal lasts without a refresh.
const DefaultTypingTTL = 3 * time.Second

type presenceEntry struct {
	sessions    int
	manual      bool
	lastSeen    time.Time
	typingRoom  string
	typingUntil time.Time
}

func (e *presenceEntry) online() bool {
	return e.sessions > 0 || e.manual
}

// PresenceTracker keeps online and typing state in memory. Online state is counted per
// websocket session so a user with two open sessions stays online until both close.
type PresenceTracker struct {
	entries   map[string]*presenceEntry
	typingTTL time.Duration
	now       func() time.Time
	mu        sync.RWMutex
}

// NewPresenceTracker builds a tracker whose typing signals expire after typingTTL.
func NewPresenceTracker(typingTTL time.Duration) *PresenceTracker {
	if typingTTL <= 0 {
		typingTTL = DefaultTypingTTL
	}
	return &PresenceTracker{
		entries:   make(map[string]*presenceEntry),
		typingTTL: typingTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *PresenceTracker) entry(userID string) *presenceEntry {
	e, ok := p.entries[userID]
	if !ok {
		e = &presenceEntry{}
		p.entries[userID] = e
	}
	return e
}

// MarkOnline records a new session of userID.
func (p *PresenceTracker) MarkOnline(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(userID).sessions++
}

// MarkOffline records that one session of userID closed. When it was the last one the
// user goes offline and any typing state is cleared; the cleared room is returned so the
// caller can tell the other member.
func (p *PresenceTracker) MarkOffline(userID string) (clearedRoom string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entry(userID)
	if e.sessions > 0 {
		e.sessions--
	}
	if e.sessions > 0 {
		return ""
	}
	e.manual = false
	e.lastSeen = p.now()
	if e.typingRoom != "" && p.now().Before(e.typingUntil) {
		clearedRoom = e.typingRoom
	}
	e.typingRoom = ""
	return clearedRoom
}

// SetOnline is the explicit toggle exposed over REST. It does not touch session counts:
// going offline only sticks once no websocket session is open.
func (p *PresenceTracker) SetOnline(userID string, online bool) models.PresenceState {
	p.mu.Lock()
	e := p.entry(userID)
	wasOnline := e.online()
	e.manual = online
	if wasOnline && !e.online() {
		e.lastSeen = p.now()
		e.typingRoom = ""
	}
	p.mu.Unlock()
	return p.Status(userID)
}

// SetTyping starts or stops the typing signal of userID in roomID. A start expires on its
// own after the tracker's TTL.
func (p *PresenceTracker) SetTyping(userID, roomID string, isTyping bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entry(userID)
	if !isTyping {
		if e.typingRoom == roomID {
			e.typingRoom = ""
		}
		return
	}
	e.typingRoom = roomID
	e.typingUntil = p.now().Add(p.typingTTL)
}

// Status returns the current presence of userID. Unknown users are offline.
func (p *PresenceTracker) Status(userID string) models.PresenceState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state := models.PresenceState{UserID: userID}
	e, ok := p.entries[userID]
	if !ok {
		return state
	}
	state.IsOnline = e.online()
	if !e.lastSeen.IsZero() {
		seen := e.lastSeen
		state.LastSeenAt = &seen
	}
	if e.typingRoom != "" && p.now().Before(e.typingUntil) {
		state.TypingInRoom = e.typingRoom
	}
	return state
}
