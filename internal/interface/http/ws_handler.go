package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/training-hub/training-hub/internal/infrastructure/subscription"
	"github.com/training-hub/training-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEBSOCKET GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsOutboundBuffer absorbs bursts when several streams push at once.
	wsOutboundBuffer = 16
)

// handleWebSocket upgrades the connection and streams the learner's live
// snapshots: stats, badges and celebrations always, plus the enrollment
// stream when campaign_id is given. Snapshot streams replay the latest
// state on connect; celebrations pass through the ledger so each one is
// surfaced exactly once across all of the learner's devices.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		writeJSONError(w, http.StatusNotImplemented, "streams_disabled", "live streams are not enabled on this instance")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_user_id", "user_id query parameter is required")
		return
	}
	campaignID := r.URL.Query().Get("campaign_id")

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed",
			logger.String("user_id", userID),
			logger.Err(err),
		)
		return
	}

	client := &wsClient{
		server:     s,
		conn:       conn,
		userID:     userID,
		campaignID: campaignID,
		outbound:   make(chan subscription.Message, wsOutboundBuffer),
		done:       make(chan struct{}),
	}
	client.run()
}

// wsClient is one connected dashboard.
type wsClient struct {
	server     *Server
	conn       *websocket.Conn
	userID     string
	campaignID string

	outbound chan subscription.Message
	done     chan struct{}
	cancels  []func()
}

func (c *wsClient) run() {
	hub := c.server.deps.Hub

	statsCh, cancelStats := hub.SubscribeUserStats(c.userID)
	badgesCh, cancelBadges := hub.SubscribeBadges(c.userID)
	celebCh, cancelCeleb := hub.SubscribeCelebrations(c.userID)
	c.cancels = append(c.cancels, cancelStats, cancelBadges, cancelCeleb)

	go c.forward(statsCh, false)
	go c.forward(badgesCh, false)
	go c.forward(celebCh, true)

	if c.campaignID != "" {
		enrollCh, cancelEnroll := hub.SubscribeEnrollment(c.userID, c.campaignID)
		c.cancels = append(c.cancels, cancelEnroll)
		go c.forward(enrollCh, false)
	}

	go c.writeLoop()
	c.readLoop()
}

// forward relays one stream into the shared outbound channel. Celebration
// messages are gated on the ledger at delivery time, not publish time, so a
// prompt that raced with another device is suppressed here.
func (c *wsClient) forward(ch <-chan subscription.Message, gated bool) {
	for msg := range ch {
		if gated && !c.firstShowing(msg) {
			continue
		}
		select {
		case c.outbound <- msg:
		case <-c.done:
			return
		}
	}
}

// firstShowing asks the ledger whether this celebration was ever surfaced.
func (c *wsClient) firstShowing(msg subscription.Message) bool {
	ledger := c.server.deps.CelebrationLedger
	if ledger == nil {
		return true
	}

	celeb, ok := msg.Payload.(subscription.Celebration)
	if !ok || celeb.Key == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	first, err := ledger.FirstShowing(ctx, c.userID, celeb.Key)
	if err != nil {
		c.server.log.Warn("celebration ledger check failed",
			logger.String("user_id", c.userID),
			logger.String("key", celeb.Key),
			logger.Err(err),
		)
		// Fail closed: a missed celebration beats a duplicate one.
		return false
	}
	return first
}

// writeLoop serializes outbound messages and keeps the connection alive.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outbound:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readLoop consumes control frames until the peer goes away, then tears the
// whole subscription set down.
func (c *wsClient) readLoop() {
	defer c.teardown()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) teardown() {
	close(c.done)
	for _, cancel := range c.cancels {
		cancel()
	}
	c.conn.Close()
}
