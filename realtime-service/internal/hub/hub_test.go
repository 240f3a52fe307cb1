package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestClient(id, userID string, buffer int) *Client {
	return &Client{
		ID:       id,
		Identity: &domain.Identity{UserID: userID},
		send:     make(chan []byte, buffer),
		rooms:    make(map[string]struct{}),
	}
}

// drain returns every frame buffered for c without blocking.
func drain(t *testing.T, c *Client) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return frames
			}
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func closed(c *Client) bool {
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}

func TestHub_RegisterJoinsPersonalRoom(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient("s1", "alice", 8)
	h.Register(c)

	assert.True(t, h.InRoom(c, "user:alice"))
	assert.True(t, h.IsOnline("alice"))
	assert.Equal(t, 1, h.ClientCount())
}

func TestHub_EmitToRoomReachesExactlyMembers(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient("s1", "alice", 8)
	b := newTestClient("s2", "bob", 8)
	outsider := newTestClient("s3", "carol", 8)
	for _, c := range []*Client{a, b, outsider} {
		h.Register(c)
	}
	require.True(t, h.Join(a, "task:t1"))
	require.True(t, h.Join(b, "task:t1"))

	n, err := h.EmitToRoom("task:t1", domain.EventReceiveMessage, map[string]string{"content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, c := range []*Client{a, b} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, domain.EventReceiveMessage, frames[0].Type)
		assert.JSONEq(t, `{"content":"hello"}`, string(frames[0].Data))
	}
	assert.Empty(t, drain(t, outsider))

	n, err = h.EmitToRoomExcept("task:t1", domain.EventUserTyping, "x", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, drain(t, a))
	assert.Len(t, drain(t, b), 1)
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient("s1", "alice", 8)
	h.Register(a)
	h.Join(a, "conversation:c1")

	assert.True(t, h.Leave(a, "conversation:c1"))
	assert.False(t, h.Leave(a, "conversation:c1"))
	assert.Zero(t, h.RoomSize("conversation:c1"))

	n, err := h.EmitToRoom("conversation:c1", domain.EventNewMessage, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, drain(t, a))
}

func TestHub_EmitToUserReachesEveryDevice(t *testing.T) {
	h := NewHub(nil)
	phone := newTestClient("s1", "dana", 8)
	laptop := newTestClient("s2", "dana", 8)
	h.Register(phone)
	h.Register(laptop)

	n, err := h.EmitToUser("dana", domain.EventNewNotification, map[string]string{"type": "SYSTEM"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, drain(t, phone), 1)
	assert.Len(t, drain(t, laptop), 1)
	assert.Equal(t, 2, h.Registry().Connections("dana"))
}

func TestHub_UnregisterCleansUp(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient("s1", "alice", 8)
	h.Register(a)
	h.Join(a, "conversation:c1")
	h.Join(a, "task:t1")

	assert.True(t, h.Unregister(a))
	assert.False(t, h.Unregister(a))

	assert.Zero(t, h.RoomSize("conversation:c1"))
	assert.Zero(t, h.RoomSize("task:t1"))
	assert.Zero(t, h.RoomSize("user:alice"))
	assert.False(t, h.IsOnline("alice"))
	assert.True(t, closed(a))

	assert.False(t, h.Join(a, "conversation:c1"))
	assert.ErrorIs(t, h.Send(a, domain.EventPong, nil), ErrClientGone)
}

func TestHub_SlowClientIsEvicted(t *testing.T) {
	h := NewHub(nil)
	slow := newTestClient("s1", "alice", 1)
	fast := newTestClient("s2", "bob", 8)
	h.Register(slow)
	h.Register(fast)
	h.Join(slow, "conversation:c1")
	h.Join(fast, "conversation:c1")

	_, err := h.EmitToRoom("conversation:c1", domain.EventNewMessage, 1)
	require.NoError(t, err)
	n, err := h.EmitToRoom("conversation:c1", domain.EventNewMessage, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.False(t, h.IsOnline("alice"))
	assert.Equal(t, 1, h.RoomSize("conversation:c1"))
	assert.Len(t, drain(t, fast), 2)
}

func TestHub_MembersObserveSameOrder(t *testing.T) {
	h := NewHub(nil)
	const senders, perSender = 4, 50
	a := newTestClient("s1", "alice", senders*perSender)
	b := newTestClient("s2", "bob", senders*perSender)
	h.Register(a)
	h.Register(b)
	h.Join(a, "conversation:c1")
	h.Join(b, "conversation:c1")

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := h.EmitToRoom("conversation:c1", domain.EventNewMessage, fmt.Sprintf("%d-%d", s, i))
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	fa, fb := drain(t, a), drain(t, b)
	require.Len(t, fa, senders*perSender)
	assert.Equal(t, fa, fb)
}
