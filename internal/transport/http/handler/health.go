package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"bacopilot/internal/bootstrap"
)

var errConnectionClosed = errors.New("connection closed")

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK       bool   `json:"ok"`
	Disabled bool   `json:"disabled,omitempty"`
	Message  string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Check probes every dependency concurrently. Redis and RabbitMQ are
// optional; when disabled they report ok.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"database": h.pingDatabase,
		"storage":  h.app.Store.Ping,
	}
	statuses := map[string]dependencyStatus{}
	if h.app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return h.app.Redis.Ping(ctx).Err() }
	} else {
		statuses["redis"] = dependencyStatus{OK: true, Disabled: true}
	}
	if h.app.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if h.app.MQConn.IsClosed() {
				return errConnectionClosed
			}
			return nil
		}
	} else {
		statuses["rabbitmq"] = dependencyStatus{OK: true, Disabled: true}
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := dependencyStatus{OK: true}
			if err := check(ctx); err != nil {
				st = dependencyStatus{OK: false, Message: err.Error()}
			}
			mu.Lock()
			statuses[name] = st
			mu.Unlock()
		}()
	}
	wg.Wait()

	statusCode := http.StatusOK
	for _, st := range statuses {
		if !st.OK {
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, gin.H{
		"app":          h.app.Config.App.Name,
		"env":          h.app.Config.App.Env,
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
		"active_jobs":  h.app.Registry.Len(),
		"dependencies": statuses,
	})
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.app.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
