package doccontext

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragassistant/internal/natstest"
)

func TestPublisher_PublishesDocumentChanges(t *testing.T) {
	nc := natstest.Connect(t)

	msgs := make(chan *nats.Msg, 8)
	sub, err := nc.ChanSubscribe(DefaultSubject, msgs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	require.NoError(t, nc.Flush())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(fixedClock(now)))
	detach := NewPublisher(nc, "", nil).Attach(store)

	store.Update("doc-a", "Plan")
	store.Update("doc-a", "Plan (renamed)") // same document, no event

	var ev SwitchedEvent
	select {
	case msg := <-msgs:
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "doc-a", ev.DocumentID)
	assert.Equal(t, "Plan", ev.DocumentName)
	assert.True(t, now.Equal(ev.Timestamp))

	detach()
	store.Update("doc-b", "Notes")
	require.NoError(t, nc.Flush())

	select {
	case msg := <-msgs:
		t.Fatalf("unexpected event after detach: %s", msg.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublisher_ClosedConnectionIsLogged(t *testing.T) {
	nc := natstest.Connect(t)
	nc.Close()

	p := NewPublisher(nc, "custom.subject", nil)
	assert.NotPanics(t, func() {
		p.Publish(Context{DocumentID: "doc-a"})
	})
}
