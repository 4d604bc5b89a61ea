// Package ledger keeps a SQLite record of coin pickups, one buyback unit per
// collected coin.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zeusync/scenehook/internal/core/events/bus"
	"github.com/zeusync/scenehook/internal/core/observability/log"
)

var (
	ErrEmptyPath = errors.New("ledger: empty db path")
	ErrClosed    = errors.New("ledger: closed")
	ErrPayload   = errors.New("ledger: unexpected event payload")
)

// Entry is one recorded pickup.
type Entry struct {
	TxID      string    `json:"tx_id"`
	CoinID    int       `json:"coin_id"`
	X         float64   `json:"x"`
	Z         float64   `json:"z"`
	Collected int       `json:"collected"`
	Units     int       `json:"units"`
	At        time.Time `json:"at"`
}

type Totals struct {
	Entries int64     `json:"entries"`
	Units   int64     `json:"units"`
	Last    time.Time `json:"last,omitzero"`
}

type req struct {
	entry Entry
	done  chan struct{}
}

type Ledger struct {
	db  *sql.DB
	log log.Log

	// mu guards closed and sends on ch against Close closing it.
	mu     sync.RWMutex
	closed bool
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64
}

func Open(path string, logger log.Log) (*Ledger, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: schema: %w", err)
	}

	l := &Ledger{
		db:  db,
		log: logger.With(log.Component("ledger")),
		ch:  make(chan req, 4096),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.loop()
	}()
	return l, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS pickups (
			tx_id TEXT PRIMARY KEY,
			coin_id INTEGER NOT NULL,
			x REAL NOT NULL,
			z REAL NOT NULL,
			collected INTEGER NOT NULL,
			units INTEGER NOT NULL,
			at_ns INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pickups_at ON pickups(at_ns);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Record queues e for writing. A missing tx id is generated and a zero unit
// count becomes one. Entries are dropped when the writer falls behind.
func (l *Ledger) Record(e Entry) bool {
	if e.TxID == "" {
		e.TxID = uuid.NewString()
	}
	if e.Units <= 0 {
		e.Units = 1
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}
	select {
	case l.ch <- req{entry: e}:
		return true
	default:
		l.dropped.Add(1)
		return false
	}
}

// Handler adapts coin.collected bus events into entries.
func (l *Ledger) Handler() bus.EventHandler {
	return func(ev bus.Event) error {
		d, ok := ev.Data().(bus.CoinCollectedData)
		if !ok {
			return fmt.Errorf("%w: %T", ErrPayload, ev.Data())
		}
		l.Record(Entry{CoinID: d.ID, X: d.X, Z: d.Z, Collected: d.Collected, At: ev.Timestamp()})
		return nil
	}
}

// Sync waits until every entry queued before the call is committed.
func (l *Ledger) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := l.send(ctx, req{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Ledger) send(ctx context.Context, r req) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	var (
		t    Totals
		last sql.NullInt64
	)
	row := l.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(units),0), MAX(at_ns) FROM pickups`)
	if err := row.Scan(&t.Entries, &t.Units, &last); err != nil {
		return Totals{}, fmt.Errorf("ledger: totals: %w", err)
	}
	if last.Valid {
		t.Last = time.Unix(0, last.Int64).UTC()
	}
	return t, nil
}

// Recent returns up to n entries, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT tx_id, coin_id, x, z, collected, units, at_ns FROM pickups ORDER BY at_ns DESC, collected DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.TxID, &e.CoinID, &e.X, &e.Z, &e.Collected, &e.Units, &at); err != nil {
			return nil, fmt.Errorf("ledger: recent: %w", err)
		}
		e.At = time.Unix(0, at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Dropped reports entries lost to a full queue.
func (l *Ledger) Dropped() uint64 { return l.dropped.Load() }

// Failed reports entries the writer could not store.
func (l *Ledger) Failed() uint64 { return l.failed.Load() }

func (l *Ledger) Close() error {
	var err error
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.ch)
		l.mu.Unlock()
		l.wg.Wait()
		err = l.db.Close()
	})
	return err
}

func (l *Ledger) loop() {
	insert, err := l.db.Prepare(`INSERT OR REPLACE INTO pickups(tx_id,coin_id,x,z,collected,units,at_ns) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		l.log.Error("prepare insert", log.Error(err))
	} else {
		defer insert.Close()
	}

	const commitEvery = 256
	var (
		tx      *sql.Tx
		pending int
	)
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			l.failed.Add(uint64(pending))
			l.log.Warn("commit failed", log.Int("entries", pending), log.Error(err))
		}
		tx, pending = nil, 0
	}

	for r := range l.ch {
		if r.done != nil {
			commit()
			close(r.done)
			continue
		}
		if insert == nil {
			l.failed.Add(1)
			continue
		}
		if tx == nil {
			if tx, err = l.db.Begin(); err != nil {
				tx = nil
				l.failed.Add(1)
				l.log.Warn("begin failed", log.Error(err))
				continue
			}
		}
		e := r.entry
		if _, err := tx.Stmt(insert).Exec(e.TxID, e.CoinID, e.X, e.Z, e.Collected, e.Units, e.At.UnixNano()); err != nil {
			l.failed.Add(1)
			l.log.Warn("insert failed", log.String("tx", e.TxID), log.Error(err))
			continue
		}
		pending++
		if pending >= commitEvery || len(l.ch) == 0 {
			commit()
		}
	}
	commit()
}
