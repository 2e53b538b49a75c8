package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xtding233/holywater-sim/internal/autosearch"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
)

const writeWait = 10 * time.Second

// handleAutoStream upgrades to WebSocket, runs an auto-search and sends one frame
// per draw followed by a result frame. The client closing the socket, or sending
// {"type":"cancel"}, cancels the run.
func (s *Server) handleAutoStream(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		writeErr(w, autosearch.ErrEmptyTarget)
		return
	}
	if !c.Session().Catalog().Reachable(target) {
		writeErr(w, enchant.ErrUnreachableTarget)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.base)
	defer cancel()

	// only the run goroutine writes until the run is done
	var writeErr error
	observe := func(ev autosearch.Event) {
		if writeErr != nil {
			return
		}
		opt := ev.Option
		writeErr = writeFrame(conn, streamFrame{
			Type:     "draw",
			Draw:     ev.Draw,
			TryCount: ev.TryCount,
			Option:   &opt,
			Matched:  ev.Matched,
		})
		if writeErr != nil {
			cancel()
		}
	}

	run, err := c.Start(ctx, target, observe)
	if err != nil {
		_ = writeFrame(conn, streamFrame{Type: "error", Err: err.Error()})
		closeNormal(conn)
		return
	}

	go readUntilCancel(conn, cancel)

	<-run.Done()
	if writeErr != nil {
		logger.Debug("Auto-search stream dropped", "target", target, "error", writeErr)
		return
	}
	if err := writeFrame(conn, streamFrame{Type: "result", Result: resultOf(c, run.Result())}); err != nil {
		return
	}
	closeNormal(conn)
}

// readUntilCancel drains client messages; any read error or a cancel frame stops the run.
func readUntilCancel(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f streamFrame
		if json.Unmarshal(msg, &f) == nil && f.Type == "cancel" {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f streamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
