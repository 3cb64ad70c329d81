package pool

import (
	"context"
	"database/sql"
)

// dbResource adapts a single *sql.Conn (checked out of a driver's own
// *sql.DB) to the Resource interface so it can flow through the
// generic Pool above. The health check runs the spec.md §4.2
// "SELECT 1 equivalent" probe on checkout.
type dbResource struct {
	conn *sql.Conn
}

func (r *dbResource) Healthy() bool {
	if r.conn == nil {
		return false
	}
	return r.conn.PingContext(context.Background()) == nil
}

func (r *dbResource) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// NewDBFactory builds a Factory that checks a *sql.Conn out of db for
// every new pooled resource. db itself already pools at the
// driver level; this wraps it in the spec's scoped-acquisition
// semantics and uniform health-check/timeout policy shared with the
// directory pool.
func NewDBFactory(db *sql.DB) Factory {
	return func(ctx context.Context) (Resource, error) {
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return &dbResource{conn: conn}, nil
	}
}

// Conn extracts the underlying *sql.Conn from a Handle acquired from a
// DB pool.
func Conn(h *Handle) *sql.Conn {
	r, ok := h.Resource().(*dbResource)
	if !ok {
		return nil
	}
	return r.conn
}
