package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"rewardcenter/core/events"
	"rewardcenter/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 64
)

type streamMessage struct {
	TxHash string        `json:"txHash"`
	Seq    uint64        `json:"seq"`
	Events []types.Event `json:"events"`
}

// streamEvents pushes every committed transaction to the client. An optional
// type query parameter keeps only events whose type has that prefix;
// transactions left without events are skipped.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub, cancel := s.exec.Hub().Subscribe(wsBuffer)
	defer cancel()
	// Nothing is read from the client; CloseRead cancels ctx once it goes away.
	ctx := conn.CloseRead(r.Context())
	if err := streamCommitted(ctx, conn, sub, prefix); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream ended", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamCommitted(ctx context.Context, conn *websocket.Conn, sub <-chan events.Committed, prefix string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub:
			if !ok {
				return nil
			}
			out := streamMessage{TxHash: hex.EncodeToString(msg.TxHash[:]), Seq: msg.Seq}
			for _, evt := range msg.Events {
				if prefix == "" || strings.HasPrefix(evt.Type, prefix) {
					out.Events = append(out.Events, evt)
				}
			}
			if len(out.Events) == 0 {
				continue
			}
			if err := writeMessage(ctx, conn, out); err != nil {
				return err
			}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
