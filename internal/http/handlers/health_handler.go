package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/lead-qualifier/internal/http/middleware"
)

const healthCheckTimeout = 5 * time.Second

// Health statuses.
const (
	healthHealthy  = "healthy"
	healthDegraded = "degraded"
	healthError    = "error"
)

// HealthResponse summarizes the dependencies. OpenAI is reported as
// configured or not; it is never called by the health check.
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health godoc
// @ID          health
// @Summary     Health check
// @Description Runs every dependency check concurrently. Any failure degrades the service.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Failure     503  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    healthHealthy,
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string, len(h.d.Checks)+1),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	lg := middleware.LoggerFrom(c)
	for _, chk := range h.d.Checks {
		wg.Add(1)
		go func(chk Check) {
			defer wg.Done()
			state := healthHealthy
			if err := chk.Run(ctx); err != nil {
				lg.Warn().Err(err).Str("check", chk.Name).Msg("health check failed")
				state = healthError
			}
			mu.Lock()
			resp.Services[chk.Name] = state
			if state != healthHealthy {
				resp.Status = healthDegraded
			}
			mu.Unlock()
		}(chk)
	}
	wg.Wait()

	if h.d.CompletionConfigured {
		resp.Services["openai"] = "configured"
	} else {
		resp.Services["openai"] = "not configured"
	}

	status := http.StatusOK
	if resp.Status != healthHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
