package chatclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlink/internal/models"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func serverMessage(id string, at time.Time) models.ChatMessage {
	return models.ChatMessage{
		ID: id, RoomID: "room_alice_bob", SenderID: "bob", ReceiverID: "alice",
		Content: "msg " + id, MessageType: models.MessageText, Status: models.MessageSent, Timestamp: at,
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.State == Confirmed {
			out = append(out, e.Message.ID)
		} else {
			out = append(out, "local:"+e.Message.Content)
		}
	}
	return out
}

func TestTentativeEntriesSortLast(t *testing.T) {
	c := NewCache()
	c.now = func() time.Time { return t0 }

	c.ApplyTentative(models.ChatMessage{SenderID: "alice", ReceiverID: "bob", Content: "first"})
	c.Merge([]models.ChatMessage{serverMessage("m2", t0.Add(2*time.Second)), serverMessage("m1", t0.Add(time.Second))})
	c.ApplyTentative(models.ChatMessage{SenderID: "alice", ReceiverID: "bob", Content: "second"})

	assert.Equal(t, []string{"m1", "m2", "local:first", "local:second"}, ids(c.Messages("room_alice_bob")))
}

func TestConfirmReplacesTentative(t *testing.T) {
	c := NewCache()
	localID := c.ApplyTentative(models.ChatMessage{SenderID: "alice", ReceiverID: "bob", Content: "hi"})

	entries := c.Messages("room_alice_bob")
	require.Len(t, entries, 1)
	assert.Equal(t, Pending, entries[0].State)
	require.NotNil(t, entries[0].Message.ClientMessageID)
	assert.Equal(t, localID, *entries[0].Message.ClientMessageID)

	persisted := serverMessage("m9", t0)
	require.True(t, c.Confirm(localID, persisted))
	entries = c.Messages("room_alice_bob")
	require.Len(t, entries, 1)
	assert.Equal(t, Confirmed, entries[0].State)
	assert.Equal(t, "m9", entries[0].Message.ID)

	assert.False(t, c.Confirm(localID, persisted))
}

func TestConfirmAfterPushDropsDuplicate(t *testing.T) {
	c := NewCache()
	localID := c.ApplyTentative(models.ChatMessage{SenderID: "alice", ReceiverID: "bob", Content: "hi"})

	pushed := serverMessage("m1", t0)
	c.Merge([]models.ChatMessage{pushed})
	require.True(t, c.Confirm(localID, pushed))

	assert.Equal(t, []string{"m1"}, ids(c.Messages("room_alice_bob")))
}

func TestMergeMatchesClientID(t *testing.T) {
	c := NewCache()
	localID := c.ApplyTentative(models.ChatMessage{SenderID: "alice", ReceiverID: "bob", Content: "hi"})

	echoed := serverMessage("m1", t0)
	echoed.ClientMessageID = &localID
	c.Merge([]models.ChatMessage{echoed, echoed})

	entries := c.Messages("room_alice_bob")
	require.Len(t, entries, 1)
	assert.Equal(t, Confirmed, entries[0].State)
	assert.Equal(t, localID, entries[0].LocalID)
}

func TestFailRetryRollback(t *testing.T) {
	c := NewCache()
	localID := c.ApplyTentative(models.ChatMessage{SenderID: "alice", ReceiverID: "bob", Content: "hi"})

	_, ok := c.Retry(localID)
	assert.False(t, ok, "pending entries are not retryable")

	boom := errors.New("network down")
	require.True(t, c.Fail(localID, boom))
	entries := c.Messages("room_alice_bob")
	assert.Equal(t, Failed, entries[0].State)
	assert.Equal(t, boom, entries[0].Err)

	msg, ok := c.Retry(localID)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, Pending, c.Messages("room_alice_bob")[0].State)

	require.True(t, c.Rollback(localID))
	assert.Empty(t, c.Messages("room_alice_bob"))
	assert.False(t, c.Rollback(localID))
}

func TestStatusNeverRegresses(t *testing.T) {
	c := NewCache()
	c.Merge([]models.ChatMessage{serverMessage("m1", t0)})

	assert.True(t, c.SetStatus("room_alice_bob", "m1", models.MessageRead))
	assert.False(t, c.SetStatus("", "m1", models.MessageDelivered))

	stale := serverMessage("m1", t0)
	c.Merge([]models.ChatMessage{stale})
	assert.Equal(t, models.MessageRead, c.Messages("room_alice_bob")[0].Message.Status)
}
