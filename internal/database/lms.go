package database

import (
	"context"
	"log"
	"time"

	"go-learnerscript/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/fx"
)

// LMSDB wraps the Postgres warehouse the reports run over. All access goes
// through RunSQL/CountSQL with a bounded per-query timeout; queries are
// assembled with "?" placeholders and rebound to the Postgres dialect here.
type LMSDB struct {
	DB      *sqlx.DB
	timeout time.Duration
}

// NewLMSDatabase opens the warehouse connection with lifecycle management
func NewLMSDatabase(lc fx.Lifecycle, cfg *config.Config) (*LMSDB, error) {
	db, err := sqlx.Open("postgres", cfg.LMSDatabase)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	log.Println("Connected to LMS warehouse!")

	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Println("Closing LMS warehouse connection...")
			return db.Close()
		},
	})

	return &LMSDB{
		DB:      db,
		timeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
	}, nil
}

// RunSQL executes a query written with "?" placeholders and returns generic
// rows. The storage collaborator contract of the report runner.
func (d *LMSDB) RunSQL(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rows, err := d.DB.QueryxContext(ctx, d.DB.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountSQL executes a single-value count query written with "?" placeholders.
func (d *LMSDB) CountSQL(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var count int64
	if err := d.DB.GetContext(ctx, &count, d.DB.Rebind(query), args...); err != nil {
		return 0, err
	}
	return count, nil
}

// Get scans a single row into dest, for typed lookups (auth, admin checks).
func (d *LMSDB) Get(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.DB.GetContext(ctx, dest, d.DB.Rebind(query), args...)
}

// Select scans multiple rows into dest.
func (d *LMSDB) Select(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.DB.SelectContext(ctx, dest, d.DB.Rebind(query), args...)
}

// In expands slice arguments for IN clauses before rebinding.
func In(query string, args ...any) (string, []any, error) {
	return sqlx.In(query, args...)
}
