package mysql

import (
	"context"
	"database/sql"
	"time"
)

// ServiceStats contains lightweight DB health and volume counters.
type ServiceStats struct {
	PingMS         int64      `json:"ping_ms"`
	UptimeSeconds  int64      `json:"uptime_seconds"`
	SpansTotal     int64      `json:"spans_total"`
	Spans24h       int64      `json:"spans_24h"`
	ResourceGroups int64      `json:"resource_groups_24h"`
	LatestSpanAt   *time.Time `json:"latest_span_at"`
}

// ServiceStats returns MySQL health and high-level span counters.
func (s *Store) ServiceStats(ctx context.Context) (*ServiceStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return nil, err
	}

	out := &ServiceStats{
		PingMS: time.Since(start).Milliseconds(),
	}

	var statusName string
	var statusValue sql.NullString
	if err := s.db.QueryRowContext(ctx, `SHOW GLOBAL STATUS LIKE 'Uptime';`).Scan(&statusName, &statusValue); err == nil && statusValue.Valid {
		if v, err := time.ParseDuration(statusValue.String + "s"); err == nil {
			out.UptimeSeconds = int64(v.Seconds())
		}
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spans;`).Scan(&out.SpansTotal); err != nil {
		return nil, err
	}

	var latest sql.NullTime
	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(DISTINCT group_hash), MAX(timestamp)
FROM spans
WHERE timestamp >= UTC_TIMESTAMP() - INTERVAL 24 HOUR;
`).Scan(&out.Spans24h, &out.ResourceGroups, &latest); err != nil {
		return nil, err
	}
	out.LatestSpanAt = nullTimePtr(latest)

	return out, nil
}
