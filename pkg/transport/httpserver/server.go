// Package httpserver exposes the KServe v2 REST surface (spec §6) over
// net/http.ServeMux, following the same method+path pattern server
// bring-up shape used for dashboard/health endpoints elsewhere in this
// codebase's lineage.
package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	pkgerrors "github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/hardware"
	obslog "github.com/amdinfer/inference-server/pkg/observability/log"
	"github.com/amdinfer/inference-server/pkg/observability/metrics"
	"github.com/amdinfer/inference-server/pkg/request"
	"github.com/amdinfer/inference-server/pkg/types"
	"github.com/amdinfer/inference-server/pkg/wire"
)

// ServerName/ServerVersion are reported from GET /v2.
const (
	ServerName    = "amdinfer"
	ServerVersion = "1.0.0"
)

// Server wires the endpoint Manager, metrics registry, and hardware probe
// into the KServe v2 HTTP handlers.
type Server struct {
	manager *endpoint.Manager
	metrics *metrics.Registry
	probe   hardware.Probe
	log     *obslog.Logger

	mux *http.ServeMux
}

// New builds a Server and registers every route on its own ServeMux.
func New(manager *endpoint.Manager, metricsReg *metrics.Registry, probe hardware.Probe) *Server {
	s := &Server{
		manager: manager,
		metrics: metricsReg,
		probe:   probe,
		log:     obslog.New("http"),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /v2", s.handleServerMetadata)
	s.mux.HandleFunc("GET /v2/health/live", s.handleLive)
	s.mux.HandleFunc("GET /v2/health/ready", s.handleReady)
	s.mux.HandleFunc("GET /v2/models", s.handleModelList)
	s.mux.HandleFunc("GET /v2/models/{model}", s.handleModelMetadata)
	s.mux.HandleFunc("GET /v2/models/{model}/ready", s.handleModelReady)
	s.mux.HandleFunc("POST /v2/models/{model}/infer", s.handleInfer)
	s.mux.HandleFunc("POST /v2/repository/models/{model}/load", s.handleRepositoryLoad)
	s.mux.HandleFunc("POST /v2/repository/models/{model}/unload", s.handleRepositoryUnload)
	s.mux.HandleFunc("POST /v2/workers/{worker}/load", s.handleWorkerLoad)
	s.mux.HandleFunc("POST /v2/workers/{worker}/unload", s.handleWorkerUnload)
	s.mux.HandleFunc("POST /v2/hardware", s.handleHardware)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

func (s *Server) handleServerMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    ServerName,
		"version": ServerVersion,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, name := range s.manager.ModelList() {
		if !s.manager.ModelReady(name) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleModelList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.manager.ModelList()})
}

func (s *Server) handleModelMetadata(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	info, err := s.manager.GetWorker(model)
	if err != nil {
		writeError(w, err)
		return
	}
	md := info.Metadata()
	if md == nil {
		writeError(w, pkgerrors.New(pkgerrors.InvalidArgument, "model %q has no metadata yet", model))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     md.Name,
		"platform": md.Platform,
		"inputs":   md.Inputs,
		"outputs":  md.Outputs,
		"ready":    md.Ready(),
	})
}

func (s *Server) handleModelReady(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	if !s.manager.ModelReady(model) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, pkgerrors.Wrap(pkgerrors.InvalidArgument, err, "reading request body"))
		return
	}

	id, params, inputs, outputs, err := wire.DecodeRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := s.manager.GetWorker(model)
	if err != nil {
		writeError(w, err)
		return
	}

	s.metrics.RequestsTotal.WithLabelValues(model).Inc()
	start := time.Now()

	respCh := make(chan *types.Response, 1)
	adapter := request.New(id, params, inputs, outputs, func(resp *types.Response) {
		respCh <- resp
	})

	if err := info.Submit(adapter); err != nil {
		writeError(w, err)
		return
	}

	select {
	case resp := <-respCh:
		s.metrics.RequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
		if resp.IsError() {
			s.metrics.RequestErrors.WithLabelValues(model).Inc()
			writeJSON(w, http.StatusInternalServerError, wire.EncodeResponse(resp))
			return
		}
		writeJSON(w, http.StatusOK, wire.EncodeResponse(resp))
	case <-r.Context().Done():
		s.metrics.RequestErrors.WithLabelValues(model).Inc()
		writeError(w, pkgerrors.New(pkgerrors.Runtime, "request cancelled"))
	}
}

func (s *Server) handleRepositoryLoad(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	kind, params, err := decodeLoadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if kind == "" {
		kind = model
	}
	name, err := s.manager.LoadWorker(kind, params, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoint": name})
}

func (s *Server) handleRepositoryUnload(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	if err := s.manager.UnloadWorker(model); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWorkerLoad(w http.ResponseWriter, r *http.Request) {
	worker := r.PathValue("worker")
	_, params, err := decodeLoadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name, err := s.manager.LoadWorker(worker, params, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoint": name})
}

func (s *Server) handleWorkerUnload(w http.ResponseWriter, r *http.Request) {
	worker := r.PathValue("worker")
	if err := s.manager.UnloadWorker(worker); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHardware(w http.ResponseWriter, r *http.Request) {
	if s.probe == nil || !s.probe.Available() {
		writeJSON(w, http.StatusOK, map[string]any{"available": false, "devices": []any{}})
		return
	}

	count := s.probe.DeviceCount()
	devices := make([]*hardware.DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		d, err := s.probe.DeviceInfo(i)
		if err != nil {
			continue
		}
		devices = append(devices, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": true, "devices": devices})
}

type loadBody struct {
	Kind       string         `json:"kind"`
	Parameters map[string]any `json:"parameters"`
}

func decodeLoadBody(r *http.Request) (string, types.Parameters, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.InvalidArgument, err, "reading load request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", types.NewParameters(), nil
	}
	var lb loadBody
	if err := json.Unmarshal(body, &lb); err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.InvalidArgument, err, "decoding load request body")
	}
	params := types.NewParameters()
	for k, v := range lb.Parameters {
		switch val := v.(type) {
		case bool:
			params.PutBool(k, val)
		case float64:
			if val == float64(int32(val)) {
				params.PutInt32(k, int32(val))
			} else {
				params.PutDouble(k, val)
			}
		case string:
			params.PutString(k, val)
		}
	}
	return lb.Kind, params, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if e, ok := err.(*pkgerrors.Error); ok {
		switch e.Kind {
		case pkgerrors.InvalidArgument:
			status = http.StatusBadRequest
		case pkgerrors.FileNotFound:
			status = http.StatusNotFound
		case pkgerrors.ConnectionError, pkgerrors.BadStatus:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Shutdown is a no-op. The *http.Server wrapping this handler owns the
// actual listener lifecycle (see cmd/server), which does not call this
// method.
func (s *Server) Shutdown(context.Context) error { return nil }
