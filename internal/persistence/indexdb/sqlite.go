package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"lastoasis.ai/internal/persistence/snapshot"
	"lastoasis.ai/internal/protocol"
	"lastoasis.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of the session: snapshot writes,
// zone decays, eliminations and final results. It never records agent
// actions and cannot be used to replay a world.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and the close of ch against concurrent enqueues.
	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Written       uint64 `json:"written"`
	Dropped       uint64 `json:"dropped"`
	Failed        uint64 `json:"failed"`
}

type reqKind int

const (
	reqDecay reqKind = iota + 1
	reqElimination
	reqSnapshot
	reqResults
)

type req struct {
	kind reqKind

	decay       decayRow
	elimination eliminationRow
	snapshot    snapshotRow
	results     []resultRow
}

type decayRow struct {
	ZoneID    int
	Name      string
	DecayedAt string
}

type eliminationRow struct {
	AgentID      string
	ZoneID       int
	EliminatedAt string
}

type snapshotRow struct {
	WrittenAt   string
	Path        string
	Status      string
	Agents      int
	AliveAgents int
	AliveZones  int
	Trades      int
	Events      int
	NextDecayAt string
}

type resultRow struct {
	AgentID    string
	Name       string
	ZoneID     int
	Survived   bool
	Inventory  string
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
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

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
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
		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			written_at TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			agents INTEGER NOT NULL,
			alive_agents INTEGER NOT NULL,
			alive_zones INTEGER NOT NULL,
			trades INTEGER NOT NULL,
			events INTEGER NOT NULL,
			next_decay_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS zone_decays (
			zone_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			decayed_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS eliminations (
			agent_id TEXT PRIMARY KEY,
			zone_id INTEGER NOT NULL,
			eliminated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_eliminations_zone ON eliminations(zone_id);`,
		`CREATE TABLE IF NOT EXISTS results (
			agent_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			zone_id INTEGER NOT NULL,
			survived INTEGER NOT NULL,
			inventory_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The snapshot file stays the source of truth; a lagging index drops.
		s.dropped.Add(1)
	}
}

// RecordEvent is a world event hook. Only decay effects are indexed.
func (s *SQLiteIndex) RecordEvent(ev protocol.Event) {
	at := ev.TS.UTC().Format(time.RFC3339Nano)
	switch ev.Type {
	case protocol.EventZoneDecayed:
		s.enqueue(req{kind: reqDecay, decay: decayRow{ZoneID: ev.ZoneID, Name: ev.Name, DecayedAt: at}})
	case protocol.EventAgentEliminated:
		s.enqueue(req{kind: reqElimination, elimination: eliminationRow{AgentID: ev.AgentID, ZoneID: ev.ZoneID, EliminatedAt: at}})
	}
}

// RecordSnapshot is a snapshot writer hook. Once the world has finished it
// also records one result row per agent.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.WorldV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		WrittenAt:   time.Now().UTC().Format(time.RFC3339Nano),
		Path:        path,
		Status:      snap.Status,
		Agents:      len(snap.Agents),
		AliveAgents: snap.AliveAgents(),
		AliveZones:  snap.AliveZones(),
		Trades:      len(snap.Trades),
		Events:      len(snap.Events),
		NextDecayAt: snap.NextDecayAt.UTC().Format(time.RFC3339Nano),
	}})
	if snap.Status == "FINISHED" {
		s.enqueue(req{kind: reqResults, results: resultRows(snap)})
	}
}

func resultRows(snap snapshot.WorldV1) []resultRow {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ids := make([]string, 0, len(snap.Agents))
	for id := range snap.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]resultRow, 0, len(ids))
	for _, id := range ids {
		a := snap.Agents[id]
		inv, _ := json.Marshal(a.Inventory)
		rows = append(rows, resultRow{
			AgentID:    a.ID,
			Name:       a.Name,
			ZoneID:     a.ZoneID,
			Survived:   a.Alive,
			Inventory:  string(inv),
			RecordedAt: now,
		})
	}
	return rows
}

// UpsertTuning stores the applied tuning and its digest so an index can be
// matched to the configuration that produced it.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, kv := range [][2]string{
		{"schema_version", "1"},
		{"tuning_json", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
	} {
		if _, err := stmt.Exec(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(uint64(opCount))
		} else {
			s.written.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(uint64(opCount) + 1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for {
		var (
			r  req
			ok bool
		)
		if tx == nil {
			r, ok = <-s.ch
		} else {
			// Commit an idle batch instead of holding it open.
			select {
			case r, ok = <-s.ch:
			case <-time.After(commitMaxWait):
				commit()
				continue
			}
		}
		if !ok {
			break
		}

		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				s.failed.Add(1)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			tx = txx
			lastCommit = time.Now()
		}
		if err := s.apply(tx, r); err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func (s *SQLiteIndex) apply(tx *sql.Tx, r req) error {
	switch r.kind {
	case reqDecay:
		d := r.decay
		_, err := tx.Exec(`INSERT OR REPLACE INTO zone_decays(zone_id,name,decayed_at) VALUES(?,?,?)`,
			d.ZoneID, d.Name, d.DecayedAt)
		return err

	case reqElimination:
		e := r.elimination
		_, err := tx.Exec(`INSERT OR REPLACE INTO eliminations(agent_id,zone_id,eliminated_at) VALUES(?,?,?)`,
			e.AgentID, e.ZoneID, e.EliminatedAt)
		return err

	case reqSnapshot:
		sn := r.snapshot
		_, err := tx.Exec(`INSERT INTO snapshots(written_at,path,status,agents,alive_agents,alive_zones,trades,events,next_decay_at) VALUES(?,?,?,?,?,?,?,?,?)`,
			sn.WrittenAt, sn.Path, sn.Status, sn.Agents, sn.AliveAgents, sn.AliveZones, sn.Trades, sn.Events, sn.NextDecayAt)
		return err

	case reqResults:
		for _, res := range r.results {
			survived := 0
			if res.Survived {
				survived = 1
			}
			if _, err := tx.Exec(`INSERT OR REPLACE INTO results(agent_id,name,zone_id,survived,inventory_json,recorded_at) VALUES(?,?,?,?,?,?)`,
				res.AgentID, res.Name, res.ZoneID, survived, res.Inventory, res.RecordedAt); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown request kind %d", r.kind)
}
