package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// Health is the probe response body.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Pools  map[string]any    `json:"pools,omitempty"`
}

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, Health{Status: healthOK})
}

// GetReadiness handles GET /health/ready. Any failing check degrades the
// response to 503.
func (s *Server) GetReadiness(c *gin.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := s.checks[name](c.Request.Context()); err != nil {
			checks[name] = "error"
			healthy = false
			continue
		}
		checks[name] = healthOK
	}

	resp := Health{Status: healthOK, Checks: checks}
	if s.pools != nil {
		resp.Pools = s.pools()
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = healthDegraded
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
