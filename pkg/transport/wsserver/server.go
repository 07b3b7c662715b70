// Package wsserver carries the KServe v2 JSON request/response schema over
// a WebSocket connection: a client sends requests and receives responses
// asynchronously on the same socket, with no guaranteed ordering (spec
// §6). It reuses a connection/read-loop shape from a dashboard
// broadcaster, but each connection answers its own caller instead of
// fanning a shared state snapshot out to every client.
package wsserver

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	obslog "github.com/amdinfer/inference-server/pkg/observability/log"
	"github.com/amdinfer/inference-server/pkg/request"
	"github.com/amdinfer/inference-server/pkg/types"
	"github.com/amdinfer/inference-server/pkg/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server upgrades inbound connections and dispatches each decoded request
// to the named endpoint, writing its response back whenever it completes.
type Server struct {
	manager *endpoint.Manager
	log     *obslog.Logger
}

// New builds a Server bound to manager for endpoint lookup.
func New(manager *endpoint.Manager) *Server {
	return &Server{manager: manager, log: obslog.New("ws")}
}

// connection serializes writes to one socket: the read loop and every
// async response callback may write concurrently, and gorilla/websocket
// connections are not safe for concurrent writers.
type connection struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HandleWS is the HTTP handler for the WebSocket upgrade endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed: %v", err)
		return
	}
	conn := &connection{conn: raw}
	s.log.Info("client connected for model %q", model)

	defer func() {
		raw.Close()
		s.log.Info("client disconnected for model %q", model)
	}()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(conn, model, data)
	}
}

func (s *Server) handleMessage(conn *connection, model string, data []byte) {
	id, params, inputs, outputs, err := wire.DecodeRequest(data)
	if err != nil {
		_ = conn.writeJSON(wire.Response{Error: err.Error()})
		return
	}

	info, err := s.manager.GetWorker(model)
	if err != nil {
		_ = conn.writeJSON(wire.Response{ID: id, Error: err.Error()})
		return
	}

	adapter := request.New(id, params, inputs, outputs, func(resp *types.Response) {
		_ = conn.writeJSON(wire.EncodeResponse(resp))
	})

	if err := info.Submit(adapter); err != nil {
		_ = conn.writeJSON(wire.Response{ID: id, Error: err.Error()})
	}
}
