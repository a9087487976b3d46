package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Health Check Handlers
// ============================================================

// LivenessProbe reports that the process is serving.
func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// StartupProbe reports that the process finished starting.
func StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "started",
	})
}

// Readiness checks that every upstream answers its liveness probe.
type Readiness struct {
	upstreams map[string]string
	client    *http.Client
	timeout   time.Duration
}

func NewReadiness(upstreams map[string]string) *Readiness {
	return &Readiness{
		upstreams: upstreams,
		client:    http.DefaultClient,
		timeout:   2 * time.Second,
	}
}

func (r *Readiness) Probe(c fiber.Ctx) error {
	checks := make(fiber.Map, len(r.upstreams))
	ready := true
	for name, base := range r.upstreams {
		if err := r.check(base); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "upstreams": checks})
	}
	return c.JSON(fiber.Map{"status": "ready", "upstreams": checks})
}

func (r *Readiness) check(base string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health/live", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fiber.NewError(resp.StatusCode, "unhealthy")
	}
	return nil
}
