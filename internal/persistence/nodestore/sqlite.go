// Package nodestore persists pipe nodes as (world, x, y, z, disabled sides)
// rows. SQLite is the default backend; Badger is the embedded key-value
// alternative.
package nodestore

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

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

var ErrClosed = errors.New("node store closed")

// SQLite writes node changes from a background goroutine so the tick loop
// never waits on disk. Reads are synchronous.
type SQLite struct {
	db  *sql.DB
	log *logrus.Entry

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqSave reqKind = iota + 1
	reqDelete
	reqFlush
)

type req struct {
	kind reqKind
	rec  host.NodeRecord
	done chan struct{}
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLite{
		db:  db,
		log: logrus.WithField("component", "nodestore_sqlite"),
		ch:  make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pipe_nodes (
			world_id TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			disabled_sides INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (world_id, x, y, z)
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// SaveNode queues an upsert. It blocks only when the queue is full.
func (s *SQLite) SaveNode(ctx context.Context, rec host.NodeRecord) error {
	return s.enqueue(ctx, req{kind: reqSave, rec: rec})
}

// DeleteNode queues a delete.
func (s *SQLite) DeleteNode(ctx context.Context, l loc.Location) error {
	return s.enqueue(ctx, req{kind: reqDelete, rec: host.RecordOf(l, 0)})
}

// Flush waits until every change queued before the call is committed.
func (s *SQLite) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.enqueue(ctx, req{kind: reqFlush, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLite) enqueue(ctx context.Context, r req) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadNodes reads every committed node of one world, sorted by coordinates.
// Call Flush first to observe queued writes.
func (s *SQLite) LoadNodes(ctx context.Context, worldID string) ([]host.NodeRecord, error) {
	if s == nil || s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT world_id, x, y, z, disabled_sides FROM pipe_nodes WHERE world_id = ? ORDER BY x, y, z`,
		worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []host.NodeRecord
	for rows.Next() {
		var r host.NodeRecord
		var mask int64
		if err := rows.Scan(&r.World, &r.X, &r.Y, &r.Z, &mask); err != nil {
			return nil, err
		}
		r.DisabledSides = loc.SideMask(mask).Clean()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Worlds lists the world ids that have at least one node.
func (s *SQLite) Worlds(ctx context.Context) ([]string, error) {
	if s == nil || s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT world_id FROM pipe_nodes ORDER BY world_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLite) loop() {
	ctx := context.Background()

	upsert, _ := s.db.Prepare(`INSERT INTO pipe_nodes(world_id,x,y,z,disabled_sides) VALUES(?,?,?,?,?)
		ON CONFLICT(world_id,x,y,z) DO UPDATE SET disabled_sides = excluded.disabled_sides`)
	remove, _ := s.db.Prepare(`DELETE FROM pipe_nodes WHERE world_id = ? AND x = ? AND y = ? AND z = ?`)
	defer func() {
		if upsert != nil {
			_ = upsert.Close()
		}
		if remove != nil {
			_ = remove.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 512
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.WithError(err).Warn("begin tx failed")
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.WithError(err).Warn("commit failed")
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.WithError(err).Warn("node write failed; rolling back batch")
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		rec := r.rec
		switch r.kind {
		case reqSave:
			if upsert == nil {
				continue
			}
			if _, err := tx.Stmt(upsert).Exec(rec.World, rec.X, rec.Y, rec.Z, int64(rec.DisabledSides.Clean())); err != nil {
				rollback(err)
				continue
			}
			opCount++
		case reqDelete:
			if remove == nil {
				continue
			}
			if _, err := tx.Stmt(remove).Exec(rec.World, rec.X, rec.Y, rec.Z); err != nil {
				rollback(err)
				continue
			}
			opCount++
		}
		// Commit once the queue runs dry so the single connection is free
		// for reads between bursts.
		if opCount >= commitEvery || len(s.ch) == 0 || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
