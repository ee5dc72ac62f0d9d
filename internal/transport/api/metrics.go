package api

import (
	"fmt"
	"net/http"

	"lastoasis.ai/internal/sim/world"
)

func (s *Server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetrics(rw, s.engine.Metrics())
}

// writeMetrics renders m in the Prometheus text exposition format.
func writeMetrics(rw http.ResponseWriter, m world.WorldMetrics) {
	finished := 0
	if m.Status == world.StatusFinished {
		finished = 1
	}
	gauge(rw, "lastoasis_world_finished", "1 once the world reached its terminal state.", finished)
	gauge(rw, "lastoasis_world_agents", "Registered agents.", m.Agents)
	gauge(rw, "lastoasis_world_alive_agents", "Agents not yet eliminated.", m.AliveAgents)
	gauge(rw, "lastoasis_world_alive_zones", "Non-terminal zones still standing.", m.AliveZones)
	gauge(rw, "lastoasis_world_trades", "Trades on record.", m.Trades)
	gauge(rw, "lastoasis_world_events", "Events retained in the log.", m.Events)
	gauge(rw, "lastoasis_world_subscribers", "Open push subscriptions.", m.Subscribers)
	gauge(rw, "lastoasis_world_inbox_depth", "Queued actions.", m.InboxDepth)

	fmt.Fprintf(rw, "# HELP lastoasis_world_next_decay_unix Unix time of the next decay.\n")
	fmt.Fprintf(rw, "# TYPE lastoasis_world_next_decay_unix gauge\n")
	fmt.Fprintf(rw, "lastoasis_world_next_decay_unix %d\n", m.NextDecayAt.Unix())

	fmt.Fprintf(rw, "# HELP lastoasis_world_actions_total Actions by outcome.\n")
	fmt.Fprintf(rw, "# TYPE lastoasis_world_actions_total counter\n")
	fmt.Fprintf(rw, "lastoasis_world_actions_total{outcome=%q} %d\n", "processed", m.Processed)
	fmt.Fprintf(rw, "lastoasis_world_actions_total{outcome=%q} %d\n", "rejected", m.Rejected)
	fmt.Fprintf(rw, "lastoasis_world_actions_total{outcome=%q} %d\n", "dropped", m.Dropped)
	fmt.Fprintf(rw, "lastoasis_world_actions_total{outcome=%q} %d\n", "panicked", m.Panics)

	fmt.Fprintf(rw, "# HELP lastoasis_world_lagged_subscribers_total Subscribers dropped for falling behind.\n")
	fmt.Fprintf(rw, "# TYPE lastoasis_world_lagged_subscribers_total counter\n")
	fmt.Fprintf(rw, "lastoasis_world_lagged_subscribers_total %d\n", m.Lagged)
}

func gauge(rw http.ResponseWriter, name, help string, v int) {
	fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
	fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
	fmt.Fprintf(rw, "%s %d\n", name, v)
}
