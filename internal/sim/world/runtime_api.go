package world

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lastoasis.ai/internal/protocol"
)

// View is the externally visible world state. Agent credentials never
// appear in it.
type View struct {
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DecayIntervalMs int64            `json:"decay_interval_ms"`
	NextDecayAt     time.Time        `json:"next_decay_at"`
	Zones           []Zone           `json:"zones"`
	Agents          map[string]Agent `json:"agents"`
	Trades          map[string]Trade `json:"trades"`
	Events          []protocol.Event `json:"events"`
}

type ZonesView struct {
	Status      Status    `json:"status"`
	NextDecayAt time.Time `json:"next_decay_at"`
	Zones       []Zone    `json:"zones"`
}

type ClaimResult struct {
	AgentID   string
	Survivors int
}

func (w *World) view() View {
	s := w.store
	return View{
		Status:          s.status,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
		DecayIntervalMs: s.decayInterval.Milliseconds(),
		NextDecayAt:     s.nextDecayAt,
		Zones:           s.Zones(),
		Agents:          s.Agents(),
		Trades:          s.Trades(),
		Events:          w.events.Events(),
	}
}

// Register admits a new agent in zone 1. It fails with ErrWorldFinished once
// the session is over.
func (w *World) Register(ctx context.Context, name string) (RegisteredAgent, error) {
	var (
		res RegisteredAgent
		err error
	)
	if e := w.do(ctx, func() { res, err = w.registerAgent(name) }); e != nil {
		return RegisteredAgent{}, e
	}
	return res, err
}

func (w *World) registerAgent(name string) (RegisteredAgent, error) {
	if w.store.status != StatusActive {
		return RegisteredAgent{}, ErrWorldFinished
	}
	now := w.clock.Now()
	id := w.cfg.NewID()
	token := w.cfg.NewID()
	name = strings.TrimSpace(name)
	if name == "" {
		short := id
		if len(short) > 6 {
			short = short[:6]
		}
		name = "agent-" + short
	}
	a := w.store.addAgent(id, name, token, now)
	w.emit(protocol.Event{
		Type:    protocol.EventAgentEntered,
		AgentID: a.ID,
		Name:    a.Name,
		ZoneID:  a.ZoneID,
	})
	w.persistSoon()
	return RegisteredAgent{AgentID: id, Token: token}, nil
}

// State returns a full copy of the public world state.
func (w *World) State(ctx context.Context) (View, error) {
	var v View
	err := w.do(ctx, func() { v = w.view() })
	return v, err
}

func (w *World) Zones(ctx context.Context) (ZonesView, error) {
	var v ZonesView
	err := w.do(ctx, func() {
		v = ZonesView{
			Status:      w.store.status,
			NextDecayAt: w.store.nextDecayAt,
			Zones:       w.store.Zones(),
		}
	})
	return v, err
}

func (w *World) Agent(ctx context.Context, id string) (Agent, bool, error) {
	var (
		a  Agent
		ok bool
	)
	err := w.do(ctx, func() {
		if p := w.store.Agent(id); p != nil {
			a, ok = p.public(), true
		}
	})
	return a, ok, err
}

// AgentByToken resolves a credential to a copy of its agent.
func (w *World) AgentByToken(ctx context.Context, token string) (Agent, bool, error) {
	var (
		a  Agent
		ok bool
	)
	err := w.do(ctx, func() {
		if p := w.store.AgentByToken(token); p != nil {
			a, ok = p.public(), true
		}
	})
	return a, ok, err
}

// ClaimReward reports the survivor count to an agent that is alive after the
// world finished. Payout is settled elsewhere.
func (w *World) ClaimReward(ctx context.Context, agentID string) (ClaimResult, error) {
	var (
		res ClaimResult
		err error
	)
	if e := w.do(ctx, func() {
		a := w.store.Agent(agentID)
		switch {
		case a == nil:
			err = fmt.Errorf("claim %q: %w", agentID, ErrUnknownAgent)
		case w.store.status != StatusFinished:
			err = ErrWorldNotFinished
		case !a.Alive:
			err = fmt.Errorf("claim %q: %w", agentID, ErrNotSurvivor)
		default:
			res = ClaimResult{AgentID: a.ID, Survivors: w.store.AliveAgents()}
		}
	}); e != nil {
		return ClaimResult{}, e
	}
	return res, err
}

// Subscribe returns the current state together with a subscription that
// yields every event appended after it, with no gap in between.
func (w *World) Subscribe(ctx context.Context, buf int) (*Subscription, View, error) {
	var (
		sub *Subscription
		v   View
	)
	err := w.do(ctx, func() {
		v = w.view()
		sub = w.events.subscribe(buf)
	})
	return sub, v, err
}

func (w *World) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	_ = w.do(context.Background(), func() { w.events.unsubscribe(sub.ID) })
}
