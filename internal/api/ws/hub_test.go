package ws_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/prime/internal/api/ws"
	"github.com/gosuda/prime/internal/audit"
	"github.com/gosuda/prime/internal/escalation"
)

type fakeSubscriber struct {
	err        error
	subscribed chan string
	messages   chan []byte
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		subscribed: make(chan string, 1),
		messages:   make(chan []byte, 4),
	}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.subscribed <- channel
	return f.messages, func() {}, nil
}

func dial(t *testing.T, handler http.HandlerFunc) (*websocket.Conn, context.Context) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn, ctx
}

func TestHub_Streams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		serve   func(*ws.Hub) http.HandlerFunc
		channel string
	}{
		{name: "audit", serve: func(h *ws.Hub) http.HandlerFunc { return h.ServeAudit }, channel: audit.Channel},
		{name: "escalations", serve: func(h *ws.Hub) http.HandlerFunc { return h.ServeEscalations }, channel: escalation.Channel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sub := newFakeSubscriber()
			conn, ctx := dial(t, tt.serve(ws.NewHub(sub)))

			select {
			case ch := <-sub.subscribed:
				assert.Equal(t, tt.channel, ch)
			case <-ctx.Done():
				t.Fatal("hub never subscribed")
			}

			sub.messages <- []byte(`{"seq":1}`)

			typ, data, err := conn.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, websocket.MessageText, typ)
			assert.JSONEq(t, `{"seq":1}`, string(data))
		})
	}
}

func TestHub_ClosesWhenStreamEnds(t *testing.T) {
	t.Parallel()

	sub := newFakeSubscriber()
	conn, ctx := dial(t, ws.NewHub(sub).ServeAudit)

	<-sub.subscribed
	close(sub.messages)

	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestHub_SubscribeFailure(t *testing.T) {
	t.Parallel()

	sub := newFakeSubscriber()
	sub.err = errors.New("redis down")
	conn, ctx := dial(t, ws.NewHub(sub).ServeEscalations)

	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusInternalError, websocket.CloseStatus(err))
}
