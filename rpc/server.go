package rpc

import (
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tailored-agentic-units/memstore/memory"
)

// MetricsPath serves Prometheus metrics when a gatherer is supplied.
const MetricsPath = "/metrics"

// NewMux mounts the memory service and, when gatherer is non-nil, the
// Prometheus metrics endpoint.
func NewMux(mem *memory.Memory, gatherer prometheus.Gatherer, opts ...connect.HandlerOption) *http.ServeMux {
	mux := http.NewServeMux()

	path, handler := NewHandler(mem, opts...)
	mux.Handle(path, handler)

	if gatherer != nil {
		mux.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// NewServer returns an HTTP server for mux on addr. No write timeout is set
// because a Recall may wait on a held key for as long as the client allows.
func NewServer(addr string, mux http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
