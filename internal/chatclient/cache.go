package chatclient

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"crewlink/internal/models"
)

// State tags how far an entry has come in the send transaction.
type State int

const (
	// Pending entries were applied locally and are waiting on the server.
	Pending State = iota
	// Failed entries could not be sent; they stay visible so the user can retry.
	Failed
	// Confirmed entries are persisted server messages.
	Confirmed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	case Confirmed:
		return "confirmed"
	}
	return "unknown"
}

// Entry is one message as the local user sees it. LocalID is empty for messages that
// were never tentative.
type Entry struct {
	LocalID string
	Message models.ChatMessage
	State   State
	Err     error
}

// Cache holds per-room message lists with tentative entries mixed in.
type Cache struct {
	rooms map[string][]Entry
	now   func() time.Time
	mu    sync.Mutex
}

func NewCache() *Cache {
	return &Cache{
		rooms: make(map[string][]Entry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ApplyTentative adds msg to its room as a pending entry and returns the local id. The
// local id doubles as the message's client_message_id.
func (c *Cache) ApplyTentative(msg models.ChatMessage) string {
	localID := uuid.NewString()
	msg.ClientMessageID = &localID
	if msg.RoomID == "" {
		msg.RoomID = models.RoomID(msg.SenderID, msg.ReceiverID)
	}
	if msg.MessageType == "" {
		msg.MessageType = models.MessageText
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[msg.RoomID] = append(c.rooms[msg.RoomID], Entry{LocalID: localID, Message: msg, State: Pending})
	return localID
}

// Confirm replaces the tentative entry with the persisted message. If the persisted
// message already arrived another way the tentative entry is dropped instead.
func (c *Cache) Confirm(localID string, persisted models.ChatMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomID, idx := c.findLocal(localID)
	if idx < 0 {
		return false
	}
	entries := c.rooms[roomID]
	if c.indexOfID(entries, persisted.ID) >= 0 {
		c.rooms[roomID] = append(entries[:idx], entries[idx+1:]...)
		return true
	}
	entries[idx] = Entry{LocalID: localID, Message: persisted, State: Confirmed}
	c.rooms[roomID] = sortEntries(entries)
	return true
}

// Fail marks the tentative entry failed. It stays in place for a retry.
func (c *Cache) Fail(localID string, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomID, idx := c.findLocal(localID)
	if idx < 0 {
		return false
	}
	c.rooms[roomID][idx].State = Failed
	c.rooms[roomID][idx].Err = err
	return true
}

// Retry moves a failed entry back to pending and returns its message for resending.
func (c *Cache) Retry(localID string) (models.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomID, idx := c.findLocal(localID)
	if idx < 0 || c.rooms[roomID][idx].State != Failed {
		return models.ChatMessage{}, false
	}
	c.rooms[roomID][idx].State = Pending
	c.rooms[roomID][idx].Err = nil
	return c.rooms[roomID][idx].Message, true
}

// Rollback removes a tentative entry as if it was never applied.
func (c *Cache) Rollback(localID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomID, idx := c.findLocal(localID)
	if idx < 0 {
		return false
	}
	entries := c.rooms[roomID]
	c.rooms[roomID] = append(entries[:idx], entries[idx+1:]...)
	return true
}

// Merge folds server messages into their rooms. Known ids are updated in place, a
// tentative entry whose client id matches is confirmed, everything else is added.
func (c *Cache) Merge(msgs []models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := make(map[string]struct{})
	for _, msg := range msgs {
		touched[msg.RoomID] = struct{}{}
		entries := c.rooms[msg.RoomID]

		if idx := c.indexOfID(entries, msg.ID); idx >= 0 {
			if msg.Status.Rank() < entries[idx].Message.Status.Rank() {
				msg.Status = entries[idx].Message.Status
			}
			entries[idx].Message = msg
			continue
		}
		if msg.ClientMessageID != nil {
			if idx := indexOfLocal(entries, *msg.ClientMessageID); idx >= 0 {
				entries[idx] = Entry{LocalID: entries[idx].LocalID, Message: msg, State: Confirmed}
				continue
			}
		}
		c.rooms[msg.RoomID] = append(entries, Entry{Message: msg, State: Confirmed})
	}
	for roomID := range touched {
		c.rooms[roomID] = sortEntries(c.rooms[roomID])
	}
}

// SetStatus advances the status of a confirmed message. Regressions are ignored.
func (c *Cache) SetStatus(roomID, messageID string, status models.MessageStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := []string{roomID}
	if roomID == "" {
		rooms = rooms[:0]
		for id := range c.rooms {
			rooms = append(rooms, id)
		}
	}
	for _, id := range rooms {
		entries := c.rooms[id]
		if idx := c.indexOfID(entries, messageID); idx >= 0 {
			if status.Rank() <= entries[idx].Message.Status.Rank() {
				return false
			}
			entries[idx].Message.Status = status
			return true
		}
	}
	return false
}

// Messages returns a copy of the room's entries: confirmed messages in (timestamp, id)
// order, then tentative ones in the order they were applied.
func (c *Cache) Messages(roomID string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.rooms[roomID]...)
}

func (c *Cache) findLocal(localID string) (string, int) {
	for roomID, entries := range c.rooms {
		if idx := indexOfLocal(entries, localID); idx >= 0 && entries[idx].State != Confirmed {
			return roomID, idx
		}
	}
	return "", -1
}

func (c *Cache) indexOfID(entries []Entry, id string) int {
	if id == "" {
		return -1
	}
	for i, e := range entries {
		if e.State == Confirmed && e.Message.ID == id {
			return i
		}
	}
	return -1
}

func indexOfLocal(entries []Entry, localID string) int {
	for i, e := range entries {
		if e.LocalID != "" && e.LocalID == localID {
			return i
		}
	}
	return -1
}

func sortEntries(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		aTentative, bTentative := a.State != Confirmed, b.State != Confirmed
		if aTentative || bTentative {
			return !aTentative && bTentative
		}
		if !a.Message.Timestamp.Equal(b.Message.Timestamp) {
			return a.Message.Timestamp.Before(b.Message.Timestamp)
		}
		return a.Message.ID < b.Message.ID
	})
	return entries
}
