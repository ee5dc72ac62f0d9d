package world

import "time"

// WorldMetrics is a read-only view of runtime signals. It is published by the
// world loop and read from HTTP handlers and tests.
type WorldMetrics struct {
	Status      Status    `json:"status"`
	Agents      int       `json:"agents"`
	AliveAgents int       `json:"alive_agents"`
	AliveZones  int       `json:"alive_zones"`
	Trades      int       `json:"trades"`
	Events      int       `json:"events"`
	Subscribers int       `json:"subscribers"`
	NextDecayAt time.Time `json:"next_decay_at"`

	InboxDepth int    `json:"inbox_depth"`
	Processed  uint64 `json:"processed"`
	Rejected   uint64 `json:"rejected"`
	Dropped    uint64 `json:"dropped"`
	Panics     uint64 `json:"panics"`
	Lagged     uint64 `json:"lagged_subscribers"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

func (w *World) publishMetrics() {
	s := w.store
	w.metrics.Store(WorldMetrics{
		Status:      s.status,
		Agents:      len(s.agents),
		AliveAgents: s.AliveAgents(),
		AliveZones:  s.AliveNonTerminalZones(),
		Trades:      len(s.trades),
		Events:      w.events.Len(),
		Subscribers: w.events.Subscribers(),
		NextDecayAt: s.nextDecayAt,
		InboxDepth:  len(w.inbox),
		Processed:   w.processed.Load(),
		Rejected:    w.rejected.Load(),
		Dropped:     w.dropped.Load(),
		Panics:      w.panics.Load(),
		Lagged:      w.events.lagged,
	})
}
