package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes the database and mirrors the result into a grpc health
// server. The same status backs /healthz.
type Checker struct {
	db       Pinger
	srv      *health.Server
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewChecker(db Pinger, interval time.Duration, log *zap.Logger) *Checker {
	c := &Checker{
		db:       db,
		srv:      health.NewServer(),
		interval: interval,
		timeout:  2 * time.Second,
		log:      log,
	}
	c.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return c
}

// Server is registered on the grpc listener.
func (c *Checker) Server() *health.Server { return c.srv }

// Check runs one probe and publishes the outcome.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := c.db.Ping(ctx); err != nil {
		c.log.Warn("database probe failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.srv.SetServingStatus("", st)
	return st
}

// Run probes until ctx ends, then marks every service as shutting down.
func (c *Checker) Run(ctx context.Context) error {
	c.Check(ctx)
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.srv.Shutdown()
			return nil
		case <-t.C:
			c.Check(ctx)
		}
	}
}

func (c *Checker) status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	resp, err := c.srv.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := c.status(r.Context())
	code := http.StatusOK
	if st != healthpb.HealthCheckResponse_SERVING {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": st.String()})
}
