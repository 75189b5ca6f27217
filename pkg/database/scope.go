package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNoScope is returned when a repository is called without a Scope in the context.
var ErrNoScope = errors.New("no database scope in context")

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// Scope wraps a pooled connection shared by every repository call of one unit of work.
// A transaction begun on Conn covers all statements later sent through Conn,
// so repositories join an open transaction without knowing about it.
type Scope struct {
	Conn *pgxpool.Conn
	inTx bool
}

// InTx reports whether a transaction is open on the scope's connection.
func (s *Scope) InTx() bool {
	return s.inTx
}

// Close releases the connection to the pool.
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// Acquire takes a connection from the pool and wraps it in a Scope.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Scope{Conn: conn}, nil
}

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// WithScope returns a context carrying a freshly acquired scope, or ctx itself when it
// already carries one. The cleanup function must be called when the scope is no longer needed.
func (db *DB) WithScope(ctx context.Context) (context.Context, func(), error) {
	if _, ok := GetScope(ctx); ok {
		return ctx, func() {}, nil
	}
	scope, err := db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}

// InTx runs fn inside a single transaction on the context's scope, acquiring a
// connection first when the context carries none. When a transaction is already open
// on the scope, fn joins it and the outer caller decides commit or rollback.
// Any error returned by fn rolls the transaction back.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, cleanup, err := db.WithScope(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	scope, _ := GetScope(ctx)
	if scope.inTx {
		return fn(ctx)
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	scope.inTx = true
	defer func() {
		scope.inTx = false
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil {
				zap.L().Warn("Failed to roll back transaction", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
