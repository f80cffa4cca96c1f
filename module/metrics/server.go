package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the http server serving /metrics requests for prometheus.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a new server that will start on the specified port and
// responds only to the /metrics endpoint.
func NewServer(log zerolog.Logger, port uint) *Server {
	addr := ":" + strconv.Itoa(int(port))

	mux := http.NewServeMux()
	endpoint := "/metrics"
	mux.Handle(endpoint, promhttp.Handler())

	m := &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		log:    log.With().Str("component", "metrics_server").Logger(),
	}

	return m
}

// Ready returns a channel that closes once the server has been launched.
func (m *Server) Ready() <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		close(ready)
		err := m.server.ListenAndServe()
		// http.ErrServerClosed is returned on Shutdown; not an error
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Err(err).Msg("metrics server failed")
		}
	}()
	m.log.Info().Str("address", m.server.Addr).Msg("metrics server started")
	return ready
}

// Done shuts the server down and returns a channel that closes once the
// shutdown has completed.
func (m *Server) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.server.Shutdown(ctx)
	}()
	return done
}
