package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BartekS5/ridsync/pkg/logger"
)

// DefaultConnectTimeout bounds the ping issued by Open.
const DefaultConnectTimeout = 5 * time.Second

// Open opens a connection pool for the dialect and verifies it with a ping.
// The pool is closed again when the ping fails.
func Open(ctx context.Context, d Dialect, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening %s database: %w", d.Name, err)
	}

	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to %s database (ping failed): %w", d.Name, err)
	}

	logger.Debugf("Connected to %s database.", d.Name)
	return db, nil
}

// Connect pins a single connection from the pool. The caller must Close it.
func Connect(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("error acquiring connection: %w", err)
	}
	return conn, nil
}
