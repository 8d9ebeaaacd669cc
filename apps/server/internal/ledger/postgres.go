package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresService is the shared-database ledger for multi-instance
// deployments. The schema is created on first connect.
type PostgresService struct {
	*sqlStore
}

func NewPostgresService(dsn string) (*PostgresService, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureLedgerSchema(ctx, db, dialectPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresService{
		sqlStore: &sqlStore{
			db:        db,
			dialect:   dialectPostgres,
			keepLimit: envIntOrDefault("LEDGER_KEEP_ROUNDS", 0),
		},
	}, nil
}

// NewPostgresServiceFromDB reuses a pool owned by someone else (the Nakama
// runtime hands plugins its database). Close leaves the pool open.
func NewPostgresServiceFromDB(ctx context.Context, db *sql.DB) (*PostgresService, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database")
	}
	if err := ensureLedgerSchema(ctx, db, dialectPostgres); err != nil {
		return nil, err
	}
	return &PostgresService{
		sqlStore: &sqlStore{
			db:       db,
			dialect:  dialectPostgres,
			borrowed: true,
		},
	}, nil
}
