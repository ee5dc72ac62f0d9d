package world

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"lastoasis.ai/internal/sim/tuning"
)

var (
	ErrQueueFull        = errors.New("world: action queue full")
	ErrStopped          = errors.New("world: stopped")
	ErrWorldFinished    = errors.New("world: finished")
	ErrWorldNotFinished = errors.New("world: not finished")
	ErrNotSurvivor      = errors.New("world: agent is not a survivor")
	ErrUnknownAgent     = errors.New("world: unknown agent")
)

type ZoneConfig struct {
	ID        int
	Name      string
	Resources map[string]int
}

type WorldConfig struct {
	DecayInterval  time.Duration
	MaxEvents      int
	InboxSize      int
	TerminalZoneID int
	GateResources  []string
	ResourceKinds  []string
	Zones          []ZoneConfig

	Clock  Clock
	Logger *log.Logger
	// NewID generates agent, credential, trade and event ids.
	NewID func() string
}

// ConfigFromTuning maps a validated tuning file onto a world config.
func ConfigFromTuning(t tuning.Tuning) WorldConfig {
	cfg := WorldConfig{
		DecayInterval:  t.DecayInterval(),
		MaxEvents:      t.MaxEvents,
		InboxSize:      t.InboxSize,
		TerminalZoneID: t.TerminalZoneID,
		GateResources:  append([]string(nil), t.GateResources...),
		ResourceKinds:  append([]string(nil), t.ResourceKinds...),
	}
	for _, z := range t.Zones {
		res := make(map[string]int, len(z.Resources))
		for k, v := range z.Resources {
			res[k] = v
		}
		cfg.Zones = append(cfg.Zones, ZoneConfig{ID: z.ID, Name: z.Name, Resources: res})
	}
	return cfg
}

func (c WorldConfig) withDefaults() WorldConfig {
	if c.MaxEvents <= 0 {
		c.MaxEvents = 500
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 1024
	}
	if c.DecayInterval <= 0 {
		c.DecayInterval = 2 * time.Minute
	}
	if c.TerminalZoneID == 0 {
		c.TerminalZoneID = len(c.Zones)
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

func (c WorldConfig) validate() error {
	if len(c.Zones) == 0 {
		return errors.New("world: no zones configured")
	}
	for i, z := range c.Zones {
		if z.ID != i+1 {
			return fmt.Errorf("world: zone ids must be 1..%d in order, got %d at position %d", len(c.Zones), z.ID, i)
		}
		for k, v := range z.Resources {
			if v < 0 {
				return fmt.Errorf("world: zone %d has negative %s", z.ID, k)
			}
		}
	}
	if c.TerminalZoneID != len(c.Zones) {
		return fmt.Errorf("world: terminal zone must be %d, got %d", len(c.Zones), c.TerminalZoneID)
	}
	if len(c.GateResources) == 0 {
		return errors.New("world: gate resources required")
	}
	return nil
}
