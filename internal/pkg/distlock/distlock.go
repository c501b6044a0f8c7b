// Package distlock provides the leader lock that keeps periodic snapshot
// refreshes from running on more than one replica at a time.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a non-blocking mutual exclusion lock. One instance belongs to
// one goroutine.
type DistLock interface {
	// Acquire reports whether the lock was taken.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still holds it.
	Release(ctx context.Context) error
}

// NewLock picks a backend: Redis when a client is configured, a PostgreSQL
// advisory lock when only a database is, and an in-process lock otherwise.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return NewLocalLock()
	}
}

// WithLock runs fn only if l can be acquired, releasing it afterwards. It
// reports whether fn ran.
func WithLock(ctx context.Context, l DistLock, fn func(context.Context) error) (bool, error) {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire: %w", err)
	}
	if !ok {
		return false, nil
	}
	defer func() {
		// Release on a fresh context so a cancelled caller still unlocks.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(rctx)
	}()
	return true, fn(ctx)
}

// PGAdvisoryLock uses session-scoped pg_try_advisory_lock. The holding
// connection is pinned until Release, and a dropped connection frees the lock.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives the advisory lock id from an FNV hash of key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// LocalLock serialises holders within one process.
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock { return &LocalLock{} }

func (l *LocalLock) Acquire(context.Context) (bool, error) { return l.mu.TryLock(), nil }

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}
