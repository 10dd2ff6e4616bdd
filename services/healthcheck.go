package services

import (
	"context"
	"time"
)

const pingTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is the liveness view of the service and its dependencies
type HealthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (r HealthReport) Healthy() bool {
	return r.Status == "ok"
}

// HealthcheckService pings the database and reports whether the
// marketplace client has credentials.
type HealthcheckService struct {
	db                    Pinger
	marketplaceConfigured bool
}

func NewHealthcheckService(db Pinger, marketplaceConfigured bool) *HealthcheckService {
	return &HealthcheckService{db: db, marketplaceConfigured: marketplaceConfigured}
}

func (s *HealthcheckService) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Services:  map[string]string{},
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		report.Status = "degraded"
		report.Services["database"] = "unhealthy: " + err.Error()
	} else {
		report.Services["database"] = "healthy"
	}

	// Missing credentials only break sync and price push, so it is not
	// reported as degraded.
	if s.marketplaceConfigured {
		report.Services["takealot"] = "configured"
	} else {
		report.Services["takealot"] = "not configured"
	}

	return report
}
