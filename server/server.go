// Package server is a minimal illustration of the Outputs contract
// (spec §6.2) over a websocket: a client sends an assigns document, the
// server compiles (once, cached by source) and renders it, and streams
// back the resulting Rendered tree as JSON. It deliberately stops
// short of the stateful "recompute on any touch, keyed by connection"
// process the teacher's pages.go implements — that full re-render
// transport is named out of scope by spec.md §1 — but still exercises
// github.com/gorilla/websocket the way pages.go does: upgrade, a
// read-loop goroutine feeding a channel, and a write-loop driven by
// that channel.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/livehtml/livehtml"
)

var upgrader = websocket.Upgrader{}

// Handler serves one named template over a websocket connection per
// request, re-rendering each time the client sends a new assigns
// document.
type Handler struct {
	Template *livehtml.CompiledTemplate
	Logger   *slog.Logger

	mu   sync.Mutex
	prev map[*websocket.Conn]map[string]any
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "expected websocket upgrade", http.StatusUpgradeRequired)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	for {
		var assigns map[string]any
		if err := ws.ReadJSON(&assigns); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return
			}
			h.logger().Warn("read websocket message", "error", err)
			return
		}

		changed := h.diff(ws, assigns)
		rendered := h.Template.Render(assigns, changed, changed != nil)

		writer, err := ws.NextWriter(websocket.TextMessage)
		if err != nil {
			h.logger().Warn("get websocket writer", "error", err)
			return
		}
		if err := json.NewEncoder(writer).Encode(rendered); err != nil {
			h.logger().Warn("encode rendered output", "error", err)
		}
		if err := writer.Close(); err != nil {
			h.logger().Warn("close websocket writer", "error", err)
			return
		}
	}
}

// diff builds a top-level changed map by comparing assigns against the
// connection's previous assigns document (nil on the connection's
// first message, triggering the initial full render per spec §8). It
// is a naive per-key deep-equality comparison, not the module/component
// registry's own changed-map bookkeeping (out of scope, spec.md §1).
func (h *Handler) diff(conn *websocket.Conn, assigns map[string]any) livehtml.ChangedMap {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.prev == nil {
		h.prev = map[*websocket.Conn]map[string]any{}
	}
	old, ok := h.prev[conn]
	h.prev[conn] = assigns
	if !ok {
		return nil
	}
	changed := livehtml.ChangedMap{}
	for k, v := range assigns {
		if !reflect.DeepEqual(old[k], v) {
			changed[k] = true
		}
	}
	for k := range old {
		if _, ok := assigns[k]; !ok {
			changed[k] = true
		}
	}
	return changed
}

// NewHandler compiles source once and returns a Handler serving it.
func NewHandler(source string, opts livehtml.CompileOptions) (*Handler, error) {
	tmpl, warnings, err := livehtml.Compile(source, opts)
	if err != nil {
		return nil, fmt.Errorf("compile template: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, w := range warnings {
		logger.Warn(w.String())
	}
	return &Handler{Template: tmpl, Logger: logger}, nil
}
