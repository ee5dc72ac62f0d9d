package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"lastoasis.ai/internal/persistence/archive"
	"lastoasis.ai/internal/persistence/indexdb"
	"lastoasis.ai/internal/persistence/snapshot"
	"lastoasis.ai/internal/protocol"
	"lastoasis.ai/internal/sim/tuning"
	"lastoasis.ai/internal/sim/world"
	"lastoasis.ai/internal/transport/api"
	"lastoasis.ai/internal/transport/ws"
)

type serverConfig struct {
	DataDir    string
	TuningPath string
	StatePath  string
	DisableDB  bool
}

// runtime is one world plus everything wired around it.
type runtime struct {
	cfg    serverConfig
	logger *log.Logger

	tune    tuning.Tuning
	world   *world.World
	writer  *snapshot.Writer
	index   *indexdb.SQLiteIndex
	decay   *world.DecayScheduler
	handler http.Handler
}

// loadTuning reads the tuning file and applies environment overrides. A
// missing file falls back to the built-in defaults.
func loadTuning(path string, logger *log.Logger) (tuning.Tuning, error) {
	tune, err := tuning.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return tune, err
		}
		logger.Printf("tuning not found (%s); using defaults", path)
		tune = tuning.Defaults()
	}
	tune.DecayIntervalMs = envInt("DECAY_INTERVAL_MS", tune.DecayIntervalMs)
	tune.EntryFee.Asset = envString("ENTRY_FEE_ASSET", tune.EntryFee.Asset)
	tune.EntryFee.Amount = envString("ENTRY_FEE_AMOUNT", tune.EntryFee.Amount)
	return tune, tune.Validate()
}

func newRuntime(cfg serverConfig, logger *log.Logger) (*runtime, error) {
	tune, err := loadTuning(cfg.TuningPath, logger)
	if err != nil {
		return nil, err
	}

	wcfg := world.ConfigFromTuning(tune)
	wcfg.Logger = log.New(logger.Writer(), "[world] ", logger.Flags())
	w, err := world.New(wcfg)
	if err != nil {
		return nil, err
	}

	statePath := strings.TrimSpace(cfg.StatePath)
	if statePath == "" {
		statePath = filepath.Join(cfg.DataDir, "world.json")
	}
	snap, created, err := snapshot.LoadOrInit(statePath, w.ExportSnapshot)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Printf("fresh world written to %s", statePath)
	} else {
		if err := w.ImportSnapshot(snap); err != nil {
			return nil, err
		}
		logger.Printf("resumed world from %s status=%s agents=%d survivors=%d",
			statePath, snap.Status, len(snap.Agents), snap.AliveAgents())
	}

	rt := &runtime{cfg: cfg, logger: logger, tune: tune, world: w}

	rt.index, err = openRuntimeIndex(cfg.DataDir, cfg.DisableDB)
	if err != nil {
		return nil, err
	}

	rt.writer = snapshot.NewWriter(statePath, tune.SnapshotDebounce(), w.Snapshot,
		log.New(logger.Writer(), "[snapshot] ", logger.Flags()))
	w.SetNotifier(rt.writer)
	if rt.index != nil {
		if err := rt.index.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
		w.AddEventHook(rt.index.RecordEvent)
		rt.writer.OnWritten(rt.index.RecordSnapshot)
	}
	rt.writer.OnWritten(rt.archiveIfFinished)
	// A world that finished before a restart still gets its archive.
	rt.archiveIfFinished(statePath, snap)

	rt.decay = world.NewDecayScheduler(w, tune.DecayPoll(), logger)

	mux := http.NewServeMux()
	api.NewServer(w, api.MockGate{Fee: protocol.EntryFee{
		Asset:  tune.EntryFee.Asset,
		Amount: tune.EntryFee.Amount,
	}}, logger).Register(mux)
	mux.HandleFunc(ws.Path, ws.NewServer(w, logger).Handler())
	rt.handler = mux
	return rt, nil
}

func (rt *runtime) archiveIfFinished(_ string, snap snapshot.WorldV1) {
	p, ok, err := archive.ArchiveFinalSnapshot(rt.cfg.DataDir, snap)
	if err != nil {
		rt.logger.Printf("archive final snapshot: %v", err)
		return
	}
	if ok {
		rt.logger.Printf("final world archived to %s", p)
	}
}

// run drives the world until ctx is cancelled, then flushes the last state.
func (rt *runtime) run(ctx context.Context) {
	rt.writer.Start(ctx)

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := rt.world.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Printf("world stopped: %v", err)
		}
	}()
	go func() {
		if err := rt.decay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Printf("decay scheduler stopped: %v", err)
		}
	}()

	<-ctx.Done()
	<-worldDone
	if n := rt.world.Settle(); n > 0 {
		rt.logger.Printf("applied %d queued actions on shutdown", n)
	}
	rt.close()
}

func (rt *runtime) close() {
	rt.writer.Close()
	rt.writer.Write(rt.world.ExportSnapshot())
	if rt.index != nil {
		if err := rt.index.Close(); err != nil {
			rt.logger.Printf("index close: %v", err)
		}
	}
}
