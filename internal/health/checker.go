package health

import (
	"context"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Pinger is satisfied by database.Manager.
type Pinger interface {
	PingDatabase() error
	PingRedis() error
}

// StatusCache is satisfied by database.Cache.
type StatusCache interface {
	CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error
	GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error)
}

// HealthChecker manages health checks for all services
type HealthChecker struct {
	pinger     Pinger
	cache      StatusCache
	healthRepo models.SystemHealthRepository
	logger     *logrus.Logger
	startedAt  time.Time
}

func NewHealthChecker(pinger Pinger, cache StatusCache, healthRepo models.SystemHealthRepository, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		pinger:     pinger,
		cache:      cache,
		healthRepo: healthRepo,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

// CheckPostgreSQL checks PostgreSQL database health
func (h *HealthChecker) CheckPostgreSQL() ServiceHealth {
	return h.check("postgresql", h.pinger.PingDatabase)
}

// CheckRedis checks Redis cache health
func (h *HealthChecker) CheckRedis() ServiceHealth {
	return h.check("redis", h.pinger.PingRedis)
}

func (h *HealthChecker) check(name string, ping func() error) ServiceHealth {
	start := time.Now()
	err := ping()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", name).Error("Health check failed")
	}

	if err := h.healthRepo.UpdateServiceHealth(name, status, responseTime, errorMsg); err != nil {
		h.logger.WithError(err).WithField("service", name).Warn("Failed to record health status")
	}

	return ServiceHealth{
		Name:         name,
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckAll performs health checks on all services
func (h *HealthChecker) CheckAll() OverallHealth {
	services := []ServiceHealth{
		h.CheckPostgreSQL(),
		h.CheckRedis(),
	}

	statuses := make([]string, len(services))
	for i, s := range services {
		statuses[i] = s.Status
	}

	return OverallHealth{
		Status:   overallStatus(statuses),
		Services: services,
		Uptime:   h.getUptime(),
	}
}

// persistedMaxAge bounds how old recorded rows may be to stand in for a live check.
const persistedMaxAge = 5 * time.Minute

// CheckCached returns cached health status if available
func (h *HealthChecker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	cachedHealth, err := h.cache.GetCachedSystemHealth(ctx)
	if err != nil {
		return nil, err
	}
	return h.summarize(cachedHealth), nil
}

// CheckPersisted returns the latest recorded row per service, or false when
// nothing was recorded within persistedMaxAge.
func (h *HealthChecker) CheckPersisted() (*OverallHealth, bool) {
	rows, err := h.healthRepo.GetAllServicesHealth()
	if err != nil {
		h.logger.WithError(err).Warn("Failed to load recorded health status")
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}
	for _, row := range rows {
		if time.Since(row.CheckedAt) > persistedMaxAge {
			return nil, false
		}
	}
	return h.summarize(rows), true
}

func (h *HealthChecker) summarize(rows []models.SystemHealth) *OverallHealth {
	services := make([]ServiceHealth, len(rows))
	statuses := make([]string, len(rows))
	for i, health := range rows {
		services[i] = ServiceHealth{
			Name:         health.ServiceName,
			Status:       health.Status,
			ResponseTime: health.ResponseTimeMs,
			Error:        health.ErrorMessage,
			LastChecked:  health.CheckedAt.Format(time.RFC3339),
		}
		statuses[i] = health.Status
	}

	return &OverallHealth{
		Status:   overallStatus(statuses),
		Services: services,
		Uptime:   h.getUptime(),
	}
}

// Current prefers the cached snapshot, then recent recorded rows, then a live check.
func (h *HealthChecker) Current(ctx context.Context) OverallHealth {
	if cached, err := h.CheckCached(ctx); err == nil && len(cached.Services) > 0 {
		return *cached
	}
	if persisted, ok := h.CheckPersisted(); ok {
		return *persisted
	}
	return h.CheckAll()
}

func overallStatus(statuses []string) string {
	overall := "healthy"
	for _, status := range statuses {
		if status == "unhealthy" {
			return "unhealthy"
		}
		if status == "degraded" {
			overall = "degraded"
		}
	}
	return overall
}

func (h *HealthChecker) getUptime() string {
	return time.Since(h.startedAt).Round(time.Second).String()
}

// Refresh runs every check and caches the result for ttl.
func (h *HealthChecker) Refresh(ctx context.Context, ttl time.Duration) OverallHealth {
	health := h.CheckAll()

	healthModels := make([]models.SystemHealth, len(health.Services))
	for i, service := range health.Services {
		checkedAt, _ := time.Parse(time.RFC3339, service.LastChecked)
		healthModels[i] = models.SystemHealth{
			ServiceName:    service.Name,
			Status:         service.Status,
			ResponseTimeMs: service.ResponseTime,
			ErrorMessage:   service.Error,
			CheckedAt:      checkedAt,
		}
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.cache.CacheSystemHealth(cacheCtx, healthModels, ttl); err != nil {
		h.logger.WithError(err).Error("Failed to cache health status")
	}

	h.logger.WithField("status", health.Status).Debug("Health check completed")
	return health
}

// PeriodicHealthCheck runs health checks periodically
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx, 2*interval)
		}
	}
}
