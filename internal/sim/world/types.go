package world

import "time"

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

type TradeStatus string

const (
	TradePending   TradeStatus = "PENDING"
	TradeAccepted  TradeStatus = "ACCEPTED"
	TradeCancelled TradeStatus = "CANCELLED"
)

type Zone struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	DecayOrder int            `json:"decay_order"`
	Alive      bool           `json:"alive"`
	DecayedAt  *time.Time     `json:"decayed_at"`
	Resources  map[string]int `json:"resources"`
}

type Agent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Token        string         `json:"-"`
	ZoneID       int            `json:"zone_id"`
	Alive        bool           `json:"alive"`
	EliminatedAt *time.Time     `json:"eliminated_at"`
	Inventory    map[string]int `json:"inventory"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Trade struct {
	ID          string      `json:"id"`
	FromAgentID string      `json:"from_agent_id"`
	ToAgentID   string      `json:"to_agent_id"`
	Item        string      `json:"item"`
	Quantity    int         `json:"quantity"`
	Status      TradeStatus `json:"status"`
	Reason      string      `json:"reason,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (z *Zone) clone() Zone {
	c := *z
	c.DecayedAt = cloneTime(z.DecayedAt)
	c.Resources = cloneCounts(z.Resources)
	return c
}

func (a *Agent) clone() Agent {
	c := *a
	c.EliminatedAt = cloneTime(a.EliminatedAt)
	c.Inventory = cloneCounts(a.Inventory)
	return c
}

// public is a copy safe to hand to readers: the credential is cleared.
func (a *Agent) public() Agent {
	c := a.clone()
	c.Token = ""
	return c
}

func (a *Agent) holds(item string) int { return a.Inventory[item] }

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
