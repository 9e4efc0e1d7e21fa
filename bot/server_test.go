package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/creditbook/conversation"
	"github.com/warp/creditbook/ledger/store"
)

// recordingSender collects every sent reply for assertions.
type recordingSender struct {
	mu      sync.Mutex
	replies []conversation.Reply
}

func (s *recordingSender) Send(_ context.Context, _ int64, reply conversation.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
	return nil
}

func (s *recordingSender) snapshot() []conversation.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]conversation.Reply(nil), s.replies...)
}

func (s *recordingSender) waitFor(t *testing.T, n int) []conversation.Reply {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d replies, got %d", n, len(s.snapshot()))
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingSender, *Dispatcher) {
	t.Helper()
	sender := &recordingSender{}
	d := NewDispatcher(conversation.New(store.NewMemory()), sender)
	t.Cleanup(d.Close)

	srv := httptest.NewServer(NewRouter("secret-token", d))
	t.Cleanup(srv.Close)
	return srv, sender, d
}

func postUpdate(t *testing.T, url string, u Update) *http.Response {
	t.Helper()
	body, err := json.Marshal(u)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestWebhook_WrongToken(t *testing.T) {
	srv, sender, _ := newTestServer(t)

	resp := postUpdate(t, srv.URL+"/webhook/wrong", Update{
		Message: &Message{Chat: Chat{ID: 1}, Text: "/start"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, sender.snapshot())
}

func TestWebhook_BadJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/webhook/secret-token", "application/json",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_StartCommand(t *testing.T) {
	srv, sender, _ := newTestServer(t)

	resp := postUpdate(t, srv.URL+"/webhook/secret-token", Update{
		UpdateID: 1,
		Message: &Message{
			Chat: Chat{ID: 100},
			From: &User{FirstName: "Иван"},
			Text: "/start",
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	replies := sender.waitFor(t, 1)
	assert.Contains(t, replies[0].Text, "Иван")
	require.NotNil(t, replies[0].Keyboard)
	assert.False(t, replies[0].Keyboard.Inline)
}

func TestWebhook_IgnoredUpdateAcknowledged(t *testing.T) {
	srv, sender, _ := newTestServer(t)

	resp := postUpdate(t, srv.URL+"/webhook/secret-token", Update{UpdateID: 7})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, sender.snapshot())
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatcher_SerializesPerChat(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(conversation.New(store.NewMemory()), sender)

	// Full add-client flow as three dispatched events; order matters.
	events := []conversation.Event{
		{ChatID: 5, Text: conversation.MenuAddClient},
		{ChatID: 5, Text: "Иван Петров"},
		{ChatID: 5, Text: "+79001234567"},
	}
	for _, ev := range events {
		require.True(t, d.Dispatch(ev))
	}
	d.Close()

	replies := sender.snapshot()
	require.NotEmpty(t, replies)
	last := replies[len(replies)-1]
	assert.Contains(t, last.Text, "Иван Петров")
	assert.Contains(t, last.Text, "добавлен")
}

// photoRejectingSender records every send attempt and fails the photo ones.
type photoRejectingSender struct {
	mu        sync.Mutex
	delivered []conversation.Reply
	failed    int
}

func (s *photoRejectingSender) Send(_ context.Context, _ int64, reply conversation.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reply.PhotoRef != "" {
		s.failed++
		return errors.New("photo upload rejected")
	}
	s.delivered = append(s.delivered, reply)
	return nil
}

func TestDispatcher_FailedPhotoSendDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	client, err := mem.CreateClient(ctx, "Иван", "+79001234567")
	require.NoError(t, err)
	_, err = mem.CreateReceipt(ctx, client.ID, "photo-1", decimal.NewFromInt(100), 5)
	require.NoError(t, err)
	_, err = mem.CreateReceipt(ctx, client.ID, "photo-2", decimal.NewFromInt(200), 5)
	require.NoError(t, err)

	sender := &photoRejectingSender{}
	d := NewDispatcher(conversation.New(mem), sender)

	require.True(t, d.Dispatch(conversation.Event{ChatID: 9, Text: conversation.MenuViewReceipts}))
	require.True(t, d.Dispatch(conversation.Event{ChatID: 9, Callback: fmt.Sprintf("view_%d", client.ID)}))
	d.Close()

	// Both photo replies failed, yet the summary before them and the menu
	// after them still went out.
	assert.Equal(t, 2, sender.failed)
	require.NotEmpty(t, sender.delivered)
	last := sender.delivered[len(sender.delivered)-1]
	assert.NotNil(t, last.Keyboard)

	var sawSummary bool
	for _, r := range sender.delivered {
		if strings.Contains(r.Text, "Иван") {
			sawSummary = true
		}
	}
	assert.True(t, sawSummary, "client summary was not delivered")
}

func TestDispatcher_CloseDuringDispatch(t *testing.T) {
	// Dispatch and Close race across many rounds; a send on a closed queue
	// would panic and fail the test.
	for i := 0; i < 100; i++ {
		d := NewDispatcher(conversation.New(store.NewMemory()), &recordingSender{})
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(chat int64) {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					d.Dispatch(conversation.Event{ChatID: chat, Text: "/start"})
				}
			}(int64(g))
		}
		d.Close()
		wg.Wait()
	}
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := NewDispatcher(conversation.New(store.NewMemory()), &recordingSender{})
	d.Close()
	assert.False(t, d.Dispatch(conversation.Event{ChatID: 1, Text: "/start"}))
}
