package sqlstore

import (
	"context"
	"database/sql"
)

// Conn is the narrow database handle the engine runs on. database/sql pools
// adapt through DB; pgx pools adapt in the postgres package.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Close() error
}

// Rows is a forward-only result set.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// sqlDB wraps *sql.DB to implement Conn.
type sqlDB struct {
	db *sql.DB
}

// DB adapts a database/sql pool.
func DB(db *sql.DB) Conn { return &sqlDB{db: db} }

func (s *sqlDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers do not report affected rows; the statement still ran.
		return 0, nil
	}
	return n, nil
}

func (s *sqlDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }

var (
	_ Conn = (*sqlDB)(nil)
	_ Rows = sqlRows{}
)
