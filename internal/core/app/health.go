package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.codeParser != nil {
		status.Components["parser"] = fmt.Sprintf("ok (%v)", s.app.codeParser.SupportedExtensions())
	} else {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	}

	if s.app.symbolStore != nil {
		status.Components["symbol_store"] = "ok"
	} else if s.app.Config.DB.IsEnabled() {
		status.Status = "degraded"
		status.Components["symbol_store"] = "missing but enabled in config"
	}

	snap := s.app.Snapshot()
	if snap.FinishedAt.IsZero() {
		status.Components["last_run"] = "none"
	} else {
		status.Components["last_run"] = fmt.Sprintf("%s (%d files, %d failed)",
			snap.FinishedAt.UTC().Format(time.RFC3339), len(snap.Files), len(snap.Failures))
	}
	if s.app.activeWatcher.Load() != nil {
		status.Components["watcher"] = "running"
	}
	return status
}
