// Package store is the SQLite-backed read model behind badge aggregation,
// relay authorization and participant tracking. It keeps only what the
// coordination layer needs from the domain subsystems: users, meetings and
// their participants, notifications, direct and discussion threads with
// per-participant read cursors, and teacher assignments.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite handle. Reads run concurrently on the pool;
// writes are funneled through a single goroutine because SQLite allows one
// writer at a time.
type Store struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation is one queued write with its completion channel.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Open opens (or creates) the database at path, applies the schema and
// starts the write loop.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(timeout)
	db.SetConnMaxIdleTime(timeout / 3)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop processes all write operations in a single goroutine, retrying
// each failed write once.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("store: write failed, retrying: %v", err)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("store: write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	op := writeOperation{
		operation: operation,
		result:    make(chan error, 1),
	}

	select {
	case s.writeChannel <- op:
		return <-op.result
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// HealthCheck verifies connectivity.
func (s *Store) HealthCheck() error {
	return s.db.Ping()
}

// Close stops the write loop and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}

// Timestamps are stored as unix nanoseconds so cursor comparisons stay
// integer comparisons in SQL.

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n)
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}
