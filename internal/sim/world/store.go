package world

import (
	"sort"
	"time"
)

// Store owns every zone, agent and trade. Mutators are only called from the
// world loop, so nothing here locks.
type Store struct {
	createdAt time.Time
	updatedAt time.Time
	status    Status

	zones   []*Zone
	agents  map[string]*Agent
	byToken map[string]*Agent
	trades  map[string]*Trade

	nextDecayAt    time.Time
	decayInterval  time.Duration
	terminalZoneID int
	gate           []string
	kinds          []string
}

func newStore(cfg WorldConfig, now time.Time) *Store {
	s := &Store{
		createdAt:      now,
		updatedAt:      now,
		status:         StatusActive,
		agents:         map[string]*Agent{},
		byToken:        map[string]*Agent{},
		trades:         map[string]*Trade{},
		nextDecayAt:    now.Add(cfg.DecayInterval),
		decayInterval:  cfg.DecayInterval,
		terminalZoneID: cfg.TerminalZoneID,
		gate:           append([]string(nil), cfg.GateResources...),
		kinds:          append([]string(nil), cfg.ResourceKinds...),
	}
	for _, zc := range cfg.Zones {
		s.zones = append(s.zones, &Zone{
			ID:         zc.ID,
			Name:       zc.Name,
			DecayOrder: zc.ID,
			Alive:      true,
			Resources:  cloneCounts(zc.Resources),
		})
	}
	return s
}

func (s *Store) Status() Status               { return s.status }
func (s *Store) NextDecayAt() time.Time       { return s.nextDecayAt }
func (s *Store) DecayInterval() time.Duration { return s.decayInterval }
func (s *Store) TerminalZoneID() int          { return s.terminalZoneID }
func (s *Store) UpdatedAt() time.Time         { return s.updatedAt }

func (s *Store) Agent(id string) *Agent { return s.agents[id] }

func (s *Store) AgentByToken(token string) *Agent {
	if token == "" {
		return nil
	}
	return s.byToken[token]
}

func (s *Store) Zone(id int) *Zone {
	if id < 1 || id > len(s.zones) {
		return nil
	}
	return s.zones[id-1]
}

func (s *Store) Trade(id string) *Trade { return s.trades[id] }

// Zones returns copies in id order.
func (s *Store) Zones() []Zone {
	out := make([]Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z.clone())
	}
	return out
}

func (s *Store) Agents() map[string]Agent {
	out := make(map[string]Agent, len(s.agents))
	for id, a := range s.agents {
		out[id] = a.public()
	}
	return out
}

func (s *Store) Trades() map[string]Trade {
	out := make(map[string]Trade, len(s.trades))
	for id, t := range s.trades {
		out[id] = *t
	}
	return out
}

func (s *Store) AliveAgents() int {
	n := 0
	for _, a := range s.agents {
		if a.Alive {
			n++
		}
	}
	return n
}

// AliveNonTerminalZones counts zones still eligible for decay.
func (s *Store) AliveNonTerminalZones() int {
	n := 0
	for _, z := range s.zones {
		if z.Alive && z.ID != s.terminalZoneID {
			n++
		}
	}
	return n
}

// sortedAgents orders agents by registration so elimination events are
// emitted deterministically.
func (s *Store) sortedAgents() []*Agent {
	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// nextDecayCandidate is the alive non-terminal zone with the lowest decay order.
func (s *Store) nextDecayCandidate() *Zone {
	var best *Zone
	for _, z := range s.zones {
		if !z.Alive || z.ID == s.terminalZoneID {
			continue
		}
		if best == nil || z.DecayOrder < best.DecayOrder {
			best = z
		}
	}
	return best
}

func (s *Store) touch(now time.Time) { s.updatedAt = now }

func (s *Store) addAgent(id, name, token string, now time.Time) *Agent {
	inv := make(map[string]int, len(s.kinds))
	for _, k := range s.kinds {
		inv[k] = 0
	}
	a := &Agent{
		ID:        id,
		Name:      name,
		Token:     token,
		ZoneID:    1,
		Alive:     true,
		Inventory: inv,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.agents[id] = a
	s.byToken[token] = a
	s.touch(now)
	return a
}

func (s *Store) moveAgent(a *Agent, to int, now time.Time) {
	a.ZoneID = to
	a.UpdatedAt = now
	s.touch(now)
}

// collectOne moves a single unit from the zone pool into the agent inventory.
func (s *Store) collectOne(a *Agent, z *Zone, resource string, now time.Time) bool {
	if z.Resources[resource] < 1 {
		return false
	}
	z.Resources[resource]--
	a.Inventory[resource]++
	a.UpdatedAt = now
	s.touch(now)
	return true
}

func (s *Store) addTrade(id string, from *Agent, toID, item string, qty int, now time.Time) *Trade {
	t := &Trade{
		ID:          id,
		FromAgentID: from.ID,
		ToAgentID:   toID,
		Item:        item,
		Quantity:    qty,
		Status:      TradePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.trades[id] = t
	s.touch(now)
	return t
}

// transfer refuses to overdraw the source.
func (s *Store) transfer(from, to *Agent, item string, qty int, now time.Time) bool {
	if qty <= 0 || from.Inventory[item] < qty {
		return false
	}
	from.Inventory[item] -= qty
	to.Inventory[item] += qty
	from.UpdatedAt = now
	to.UpdatedAt = now
	s.touch(now)
	return true
}

// settle moves a pending trade to a terminal status exactly once.
func (s *Store) settle(t *Trade, status TradeStatus, reason string, now time.Time) bool {
	if t.Status != TradePending || status == TradePending {
		return false
	}
	t.Status = status
	t.Reason = reason
	t.UpdatedAt = now
	s.touch(now)
	return true
}

func (s *Store) touchAgent(a *Agent, now time.Time) {
	a.UpdatedAt = now
	s.touch(now)
}

// decayZone kills z and every alive agent standing in it.
func (s *Store) decayZone(z *Zone, now time.Time) []*Agent {
	z.Alive = false
	at := now
	z.DecayedAt = &at

	var eliminated []*Agent
	for _, a := range s.sortedAgents() {
		if !a.Alive || a.ZoneID != z.ID {
			continue
		}
		a.Alive = false
		el := now
		a.EliminatedAt = &el
		a.UpdatedAt = now
		eliminated = append(eliminated, a)
	}
	s.nextDecayAt = now.Add(s.decayInterval)
	s.touch(now)
	return eliminated
}

func (s *Store) finish(now time.Time) bool {
	if s.status == StatusFinished {
		return false
	}
	s.status = StatusFinished
	s.touch(now)
	return true
}
