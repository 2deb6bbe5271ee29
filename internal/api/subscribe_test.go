package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soh-gateway/internal/events"
	"soh-gateway/internal/publisher"
)

func dialFeed(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.server.Engine())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/soh/subscribe"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readView(t *testing.T, conn *websocket.Conn) events.StationAndGroupSoh {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var view events.StationAndGroupSoh
	require.NoError(t, conn.ReadJSON(&view))
	return view
}

func TestSubscribe_InitialViewThenFlushes(t *testing.T) {
	env := newTestEnv(t)
	conn := dialFeed(t, env)

	initial := readView(t, conn)
	require.Len(t, initial.StationRecords, 2)
	assert.False(t, initial.IsUpdateResponse)

	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	env.hub.Publish(events.StationAndGroupSoh{
		StationRecords:   []events.StationSoh{{StationName: "AAK", StatusSummary: events.StatusBad}},
		IsUpdateResponse: true,
	}, publisher.KindImmediate)

	next := readView(t, conn)
	assert.True(t, next.IsUpdateResponse)
	require.Len(t, next.StationRecords, 1)
	assert.Equal(t, events.StatusBad, next.StationRecords[0].StatusSummary)
}

func TestSubscribe_DisconnectUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	conn := dialFeed(t, env)
	readView(t, conn)
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return env.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribe_CloseEndsFeed(t *testing.T) {
	env := newTestEnv(t)
	conn := dialFeed(t, env)
	readView(t, conn)

	env.server.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestSubscribe_RejectedAfterClose(t *testing.T) {
	env := newTestEnv(t)
	env.server.Close()

	ts := httptest.NewServer(env.server.Engine())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/soh/subscribe"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 0, env.hub.Count())

	done := make(chan struct{})
	go func() {
		env.server.feeds.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rejected feed was still tracked")
	}
}
