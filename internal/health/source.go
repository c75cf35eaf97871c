// Package health reads measurement data from the owner's health database.
// The database is produced by external sync jobs; this package only queries
// its views, read-only. It exists so the gateway has real protected
// resources behind the authorization middleware.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Measurement is one health data point from the measurement views.
type Measurement struct {
	Date        time.Time `json:"date" db:"date"`
	Type        int       `json:"type" db:"type"`
	MeasureName string    `json:"measure_name" db:"measure_name"`
	Value       float64   `json:"value" db:"value"`
	Unit        string    `json:"unit" db:"unit"`
}

// TrendPoint is an aggregated measurement over a grouping interval.
type TrendPoint struct {
	Period      string  `json:"period" db:"period"`
	Type        int     `json:"type" db:"type"`
	MeasureName string  `json:"measure_name" db:"measure_name"`
	AvgValue    float64 `json:"avg_value" db:"avg_value"`
	MinValue    float64 `json:"min_value" db:"min_value"`
	MaxValue    float64 `json:"max_value" db:"max_value"`
	Unit        string  `json:"unit" db:"unit"`
}

// Source queries the health measurement database.
type Source struct {
	db *sqlx.DB
}

// Open connects to the health database read-only.
func Open(path string) (*Source, error) {
	db, err := sqlx.Connect("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open health database: %w", err)
	}
	return &Source{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Source) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Source) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Latest returns the most recent reading for each metric, optionally
// filtered by measurement type.
func (s *Source) Latest(ctx context.Context, types []int) ([]Measurement, error) {
	query := "SELECT date, type, measure_name, value, unit FROM v_latest_measurements"
	args := []interface{}{}

	if len(types) > 0 {
		query += " WHERE type IN (?" + strings.Repeat(",?", len(types)-1) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}

	var out []Measurement
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query latest measurements: %w", err)
	}
	return out, nil
}

// intervalSQL maps a grouping interval name to its SQLite date expression.
// Unknown intervals fall back to daily grouping.
func intervalSQL(interval string) string {
	switch interval {
	case "week":
		return "date(date, 'weekday 0')"
	case "month":
		return "date(date, 'start of month')"
	default:
		return "date(date)"
	}
}

// Trends returns per-interval aggregates over the trailing number of days,
// optionally filtered by measurement type.
func (s *Source) Trends(ctx context.Context, days int, interval string, types []int) ([]TrendPoint, error) {
	query := fmt.Sprintf(`SELECT
			%s AS period,
			type,
			measure_name,
			AVG(value) AS avg_value,
			MIN(value) AS min_value,
			MAX(value) AS max_value,
			unit
		FROM v_measurements
		WHERE date >= date('now', ?)`, intervalSQL(interval))
	args := []interface{}{fmt.Sprintf("-%d days", days)}

	if len(types) > 0 {
		query += " AND type IN (?" + strings.Repeat(",?", len(types)-1) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	query += " GROUP BY period, type, measure_name, unit ORDER BY period, type"

	var out []TrendPoint
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query measurement trends: %w", err)
	}
	return out, nil
}
