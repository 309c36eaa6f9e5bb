package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/pathwatchd/internal/pathmon"
)

func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, context.Context, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, r.Context(), nil
}

// handleWatch streams path changes to a WebSocket client: the current
// snapshot first, then one message per committed significant change.
func (s *Service) handleWatch(w http.ResponseWriter, r *http.Request) {
	if !s.checkMinVersion(w, r) {
		return
	}

	c, ctx, err := accept(w, r)
	if err != nil {
		log.WithError(err).Error("Failed to accept client")
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "closing")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id, ch, ok := s.addClient()
	if !ok {
		return
	}
	defer s.removeClient(id)

	log.WithField("client", id).Debug("Watch client connected")
	defer log.WithField("client", id).Debug("Watch client disconnected")

	if err := writeStatus(ctx, c, s.provider.Current()); err != nil {
		return
	}

	// Reads only detect the client going away; no inbound protocol.
	go func() {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := writeStatus(ctx, c, snap); err != nil {
				return
			}
		}
	}
}

func writeStatus(ctx context.Context, c *websocket.Conn, snap *pathmon.Snapshot) error {
	b, err := json.Marshal(statusFor(snap))
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, b)
}
