package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream upgrades to a websocket and pushes the cached market snapshot
// on a fixed interval until the client goes away. Reads happen through the
// cache, so stream clients never add upstream call pressure.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger.Debug("stream client connected",
		zap.String("remote", conn.RemoteAddr().String()),
	)

	// Drains control frames and unblocks the write loop when the peer
	// closes the connection.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		snap := s.market.Snapshot(ctx, false)
		payload := marketDataResponse{
			Tickers: snap.Tickers,
			Charts:  snap.Charts,
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(payload); err != nil {
			logger.Debug("stream client disconnected",
				zap.String("remote", conn.RemoteAddr().String()),
			)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
