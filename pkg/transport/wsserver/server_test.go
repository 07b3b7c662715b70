package wsserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
)

func TestHandleWSRoundTrip(t *testing.T) {
	mgr := endpoint.NewManager(memory.NewPool(), "")
	t.Cleanup(mgr.Shutdown)
	_, err := mgr.LoadWorker("simulation", types.NewParameters(), true)
	require.NoError(t, err)

	s := New(mgr)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{model}", s.HandleWS)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/simulation"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	body := `{"id":"r1","inputs":[{"name":"x","shape":[1],"datatype":"FP32","data":[1.0]}]}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(body)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"id":"r1"`)
}
