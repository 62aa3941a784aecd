package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"seirsim.dev/internal/sim/digest"
	"seirsim.dev/internal/sim/epidemic"
)

// SQLiteIndex is a queryable read model of simulation runs. Writes are
// queued and applied by a single writer goroutine; the JSONL day log
// remains the source of truth.
//
// It implements epidemic.Observer for one run at a time: call BeginRun,
// then hand it to the simulator.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64

	// owned by the simulation goroutine
	pendingNew int
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqDay
	reqResult
)

type req struct {
	kind reqKind

	run    runRow
	day    DayRow
	result epidemic.Result
}

type runRow struct {
	Seed      int64
	Config    epidemic.Config
	StartedAt string
}

type RunRow struct {
	ID              int64
	Seed            int64
	Config          epidemic.Config
	StartedAt       string
	Outcome         string
	Days            int
	Rounds          int
	TotalInfections int
	AttackRate      float64
}

type DayRow struct {
	Day           int
	Active        int
	Total         int
	NewInfections int
	Digest        string
}

var ErrRunNotFound = errors.New("indexdb: run not found")

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seed INTEGER NOT NULL,
			config_json TEXT NOT NULL,
			started_at TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			days INTEGER NOT NULL DEFAULT 0,
			rounds INTEGER NOT NULL DEFAULT 0,
			total_infections INTEGER NOT NULL DEFAULT 0,
			attack_rate REAL NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed, id);`,
		`CREATE TABLE IF NOT EXISTS days (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			day INTEGER NOT NULL,
			active INTEGER NOT NULL,
			total INTEGER NOT NULL,
			new_infections INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, day)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued writes and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped reports how many writes were discarded because the queue was full.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropped.Add(1)
	}
}

// BeginRun opens a new run row; following day and result writes attach to it.
func (s *SQLiteIndex) BeginRun(seed int64, cfg epidemic.Config) {
	s.pendingNew = 0
	s.enqueue(req{kind: reqRun, run: runRow{
		Seed:      seed,
		Config:    cfg,
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

func (s *SQLiteIndex) DayStarted(epidemic.DayReport) { s.pendingNew = 0 }

func (s *SQLiteIndex) Infected(epidemic.Infection) { s.pendingNew++ }

func (s *SQLiteIndex) DayEnded(d epidemic.DayReport) {
	s.enqueue(req{kind: reqDay, day: DayRow{
		Day:           d.Day,
		Active:        d.Active,
		Total:         d.Total,
		NewInfections: s.pendingNew,
		Digest:        digest.Population(d.Day, d.Population),
	}})
	s.pendingNew = 0
}

func (s *SQLiteIndex) Finished(r epidemic.Result) {
	s.enqueue(req{kind: reqResult, result: r})
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		runID int64
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
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
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			cfgJSON, _ := json.Marshal(r.run.Config)
			res, err := tx.Exec(`INSERT INTO runs(seed,config_json,started_at) VALUES(?,?,?)`,
				r.run.Seed, string(cfgJSON), r.run.StartedAt)
			if err != nil {
				runID = 0
				break
			}
			runID, _ = res.LastInsertId()
		case reqDay:
			if runID == 0 {
				break
			}
			_, _ = tx.Exec(`INSERT OR REPLACE INTO days(run_id,day,active,total,new_infections,digest) VALUES(?,?,?,?,?,?)`,
				runID, r.day.Day, r.day.Active, r.day.Total, r.day.NewInfections, r.day.Digest)
		case reqResult:
			if runID == 0 {
				break
			}
			_, _ = tx.Exec(`UPDATE runs SET outcome=?,days=?,rounds=?,total_infections=?,attack_rate=? WHERE id=?`,
				r.result.Outcome.String(), r.result.Days, r.result.Rounds, r.result.TotalInfections, r.result.AttackRate, runID)
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) > commitMaxWait {
			commit()
		}
	}
	commit()
}

// LatestRun returns the most recently indexed run with the given seed and
// its day rows in day order.
func LatestRun(ctx context.Context, path string, seed int64) (RunRow, []DayRow, error) {
	var run RunRow
	if _, err := os.Stat(path); err != nil {
		return run, nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return run, nil, err
	}
	defer db.Close()

	var cfgJSON string
	row := db.QueryRowContext(ctx, `SELECT id,seed,config_json,started_at,outcome,days,rounds,total_infections,attack_rate
		FROM runs WHERE seed=? ORDER BY id DESC LIMIT 1`, seed)
	err = row.Scan(&run.ID, &run.Seed, &cfgJSON, &run.StartedAt, &run.Outcome, &run.Days, &run.Rounds, &run.TotalInfections, &run.AttackRate)
	if errors.Is(err, sql.ErrNoRows) {
		return run, nil, fmt.Errorf("%w: seed=%d", ErrRunNotFound, seed)
	}
	if err != nil {
		return run, nil, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return run, nil, fmt.Errorf("run %d config: %w", run.ID, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT day,active,total,new_infections,digest FROM days WHERE run_id=? ORDER BY day`, run.ID)
	if err != nil {
		return run, nil, err
	}
	defer rows.Close()
	var days []DayRow
	for rows.Next() {
		var d DayRow
		if err := rows.Scan(&d.Day, &d.Active, &d.Total, &d.NewInfections, &d.Digest); err != nil {
			return run, nil, err
		}
		days = append(days, d)
	}
	return run, days, rows.Err()
}
