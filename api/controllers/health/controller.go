package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jaujye/ocean-shopping-center/api/responses"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
)

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller serves liveness and readiness probes.
type Controller struct {
	deps map[string]Pinger
	logg *logger.Logger
}

// NewController builds the health controller over named dependencies.
func NewController(logg *logger.Logger, deps map[string]Pinger) *Controller {
	return &Controller{deps: deps, logg: logg}
}

// Live always reports ok while the process is serving.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	responses.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings every dependency with a short deadline.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(c.deps))
	for name, dep := range c.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			if c.logg != nil {
				c.logg.Error(ctx, "readiness check failed for "+name, err)
			}
			continue
		}
		checks[name] = "ok"
	}

	responses.WriteSuccess(w, status, checks)
}
