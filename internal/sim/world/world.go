package world

import (
	"log"
	"sync"
	"sync/atomic"
)

// Notifier is told after every state change that should reach disk.
type Notifier interface {
	Notify()
}

// RegisteredAgent is what a new participant needs to act.
type RegisteredAgent struct {
	AgentID string
	Token   string
}

type queryReq struct {
	fn   func()
	done chan struct{}
}

// World owns the store and applies every action on a single goroutine.
type World struct {
	cfg    WorldConfig
	clock  Clock
	logger *log.Logger

	store  *Store
	events *EventLog

	inbox    chan ActionEnvelope
	queries  chan queryReq
	stop     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}
	exitOnce sync.Once

	// loopMu is held by Run for its lifetime; callers that acquire it may
	// touch state directly because no loop is running.
	loopMu sync.Mutex

	notifier Notifier

	processed atomic.Uint64
	rejected  atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
	metrics   atomic.Value
}

func New(cfg WorldConfig) (*World, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	now := cfg.Clock.Now()
	w := &World{
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		store:   newStore(cfg, now),
		events:  newEventLog(cfg.MaxEvents, cfg.Clock, cfg.NewID, cfg.Logger),
		inbox:   make(chan ActionEnvelope, cfg.InboxSize),
		queries: make(chan queryReq),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	w.publishMetrics()
	return w, nil
}

// SetNotifier must be called before Run.
func (w *World) SetNotifier(n Notifier) { w.notifier = n }

// AddEventHook must be called before Run.
func (w *World) AddEventHook(h EventHook) { w.events.addHook(h) }

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) persistSoon() {
	if w.notifier != nil {
		w.notifier.Notify()
	}
}
