package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"soh-gateway/internal/events"
	"soh-gateway/internal/publisher"
)

const (
	// FeedBuffer is the number of views queued per feed client before
	// deliveries to it are dropped.
	FeedBuffer = 16
	// WriteWait bounds a single websocket write.
	WriteWait = 10 * time.Second
	// PongWait is how long a feed client may stay silent.
	PongWait = 60 * time.Second
	// PingPeriod must be shorter than PongWait.
	PingPeriod = PongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleSubscribe upgrades to a websocket and streams views. The current
// view is sent first, then every view the feed publishes.
func (s *Server) handleSubscribe(c *gin.Context) {
	if !s.trackFeed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.feeds.Done()
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	// Subscribe before taking the snapshot so no flush falls between them
	sub := publisher.NewChannelSubscriber(FeedBuffer)
	unsubscribe := s.deps.Feed.Subscribe(sub)

	go func() {
		defer s.feeds.Done()
		defer unsubscribe()
		defer conn.Close()
		s.streamFeed(conn, sub)
	}()
}

func (s *Server) streamFeed(conn *websocket.Conn, sub *publisher.ChannelSubscriber) {
	remote := conn.RemoteAddr().String()
	slog.Info("Feed client connected", "remote_addr", remote)
	defer slog.Info("Feed client disconnected", "remote_addr", remote)

	readDone := make(chan struct{})
	go readPump(conn, readDone)

	if err := writeView(conn, s.deps.Soh.CurrentView()); err != nil {
		slog.Warn("Failed to send initial view", "remote_addr", remote, "error", err)
		return
	}

	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(WriteWait))
			return
		case <-readDone:
			return
		case view := <-sub.C():
			if err := writeView(conn, view); err != nil {
				slog.Warn("Failed to send view", "remote_addr", remote, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages so control frames are processed, and
// closes done when the connection ends.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeView(conn *websocket.Conn, view events.StationAndGroupSoh) error {
	_ = conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return conn.WriteJSON(view)
}
