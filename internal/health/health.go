package health

import (
	"context"
	"database/sql"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Report is the readiness probe body.
type Report struct {
	Status       string                `json:"status"`
	Timestamp    time.Time             `json:"timestamp"`
	Dependencies map[string]Dependency `json:"dependencies,omitempty"`
}

type Dependency struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Checker pings the database and, when configured, Redis.
type Checker struct {
	sqlDB *sql.DB
	redis redis.UniversalClient
	now   func() time.Time
}

func NewChecker(db *gorm.DB, client redis.UniversalClient) (*Checker, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return newChecker(sqlDB, client), nil
}

func newChecker(sqlDB *sql.DB, client redis.UniversalClient) *Checker {
	return &Checker{sqlDB: sqlDB, redis: client, now: time.Now}
}

// Check reports unhealthy when the database is down. A Redis failure only
// degrades the service: the database guards every invariant.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status:       StatusHealthy,
		Timestamp:    c.now().UTC(),
		Dependencies: make(map[string]Dependency, 2),
	}

	if c.sqlDB != nil {
		dep := c.checkDatabase(ctx)
		report.Dependencies["database"] = dep
		report.Status = worst(report.Status, dep.Status)
	}

	if c.redis != nil {
		dep := c.checkRedis(ctx)
		report.Dependencies["redis"] = dep
		if dep.Status != StatusHealthy {
			report.Status = worst(report.Status, StatusDegraded)
		}
	}

	return report
}

func (c *Checker) checkDatabase(ctx context.Context) Dependency {
	start := c.now()
	err := c.sqlDB.PingContext(ctx)
	dep := Dependency{Status: StatusHealthy, LatencyMS: c.now().Sub(start).Milliseconds()}
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
		return dep
	}

	stats := c.sqlDB.Stats()
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		dep.Status = StatusDegraded
		dep.Message = "connection pool exhausted"
	}
	return dep
}

func (c *Checker) checkRedis(ctx context.Context) Dependency {
	start := c.now()
	err := c.redis.Ping(ctx).Err()
	dep := Dependency{Status: StatusHealthy, LatencyMS: c.now().Sub(start).Milliseconds()}
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}

func worst(a, b string) string {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func rank(status string) int {
	switch status {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
