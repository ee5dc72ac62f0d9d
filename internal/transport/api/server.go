package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"lastoasis.ai/internal/protocol"
	"lastoasis.ai/internal/sim/world"
)

// Prefix is the mount point of the agent API.
const Prefix = "/api/world"

const maxBodyBytes = 256 << 10

// Engine is the slice of the world the HTTP surface needs.
type Engine interface {
	Register(ctx context.Context, name string) (world.RegisteredAgent, error)
	State(ctx context.Context) (world.View, error)
	Zones(ctx context.Context) (world.ZonesView, error)
	Agent(ctx context.Context, id string) (world.Agent, bool, error)
	AgentByToken(ctx context.Context, token string) (world.Agent, bool, error)
	Submit(agentID string, act world.Action) error
	ClaimReward(ctx context.Context, agentID string) (world.ClaimResult, error)
	Metrics() world.WorldMetrics
}

type Server struct {
	engine Engine
	gate   EntryGate
	log    *log.Logger

	queryTimeout time.Duration
}

func NewServer(e Engine, gate EntryGate, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		engine:       e,
		gate:         gate,
		log:          logger,
		queryTimeout: 5 * time.Second,
	}
}

// Register mounts every route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST "+Prefix+"/enter", s.handleEnter)

	mux.Handle("GET "+Prefix+"/state", s.requireAgent(s.handleState))
	mux.Handle("GET "+Prefix+"/zones", s.requireAgent(s.handleZones))
	mux.Handle("GET "+Prefix+"/state/agent/{id}", s.requireAgent(s.handleAgent))
	mux.Handle("POST "+Prefix+"/action", s.requireAgent(s.handleAction))
	mux.Handle("POST "+Prefix+"/trade", s.requireAgent(s.handleTrade))
	mux.Handle("POST "+Prefix+"/claim-reward", s.requireAgent(s.handleClaim))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	v, err := s.engine.State(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.HealthResponse{
		OK:        true,
		Status:    string(v.Status),
		UpdatedAt: v.UpdatedAt,
	})
}

func (s *Server) handleEnter(rw http.ResponseWriter, r *http.Request) {
	if s.gate != nil && !s.gate.Approve(r) {
		rw.Header().Set("X-Payment-Protocol", paymentProtocol)
		writeJSON(rw, http.StatusPaymentRequired, s.gate.Challenge())
		return
	}
	raw, err := readBody(rw, r)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrInvalidAction)
		return
	}
	req, err := protocol.DecodeEnterRequest(raw)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrInvalidAction)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	reg, err := s.engine.Register(ctx, req.Name)
	if err != nil {
		s.fail(rw, err)
		return
	}
	s.log.Printf("agent entered id=%s", reg.AgentID)
	writeJSON(rw, http.StatusOK, protocol.EnterResponse{AgentID: reg.AgentID, Token: reg.Token})
}

func (s *Server) handleState(rw http.ResponseWriter, r *http.Request, _ world.Agent) {
	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	v, err := s.engine.State(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, v)
}

func (s *Server) handleZones(rw http.ResponseWriter, r *http.Request, _ world.Agent) {
	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	v, err := s.engine.Zones(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, v)
}

func (s *Server) handleAgent(rw http.ResponseWriter, r *http.Request, self world.Agent) {
	id := r.PathValue("id")
	if id != self.ID {
		writeError(rw, http.StatusForbidden, protocol.ErrForbidden)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	a, ok, err := s.engine.Agent(ctx, id)
	if err != nil {
		s.fail(rw, err)
		return
	}
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound)
		return
	}
	writeJSON(rw, http.StatusOK, struct {
		Agent world.Agent `json:"agent"`
	}{a})
}

func (s *Server) handleAction(rw http.ResponseWriter, r *http.Request, self world.Agent) {
	raw, err := readBody(rw, r)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrInvalidAction)
		return
	}
	req, err := protocol.DecodeActionRequest(raw)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrInvalidAction)
		return
	}
	s.submit(rw, self.ID, world.ActionFromRequest(req))
}

func (s *Server) handleTrade(rw http.ResponseWriter, r *http.Request, self world.Agent) {
	raw, err := readBody(rw, r)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrInvalidAction)
		return
	}
	req, err := protocol.DecodeTradeRequest(raw)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrInvalidAction)
		return
	}
	s.submit(rw, self.ID, world.ActionFromRequest(req.Action()))
}

func (s *Server) submit(rw http.ResponseWriter, agentID string, act world.Action) {
	if err := s.engine.Submit(agentID, act); err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.AckResponse{OK: true})
}

func (s *Server) handleClaim(rw http.ResponseWriter, r *http.Request, self world.Agent) {
	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	res, err := s.engine.ClaimReward(ctx, self.ID)
	if err != nil {
		s.fail(rw, err)
		return
	}
	n := res.Survivors
	if n < 1 {
		n = 1
	}
	writeJSON(rw, http.StatusOK, protocol.ClaimResponse{
		OK:        true,
		AgentID:   res.AgentID,
		Survivors: res.Survivors,
		Share:     1 / float64(n),
	})
}

type agentHandler func(rw http.ResponseWriter, r *http.Request, self world.Agent)

// requireAgent resolves the bearer token to a living agent.
func (s *Server) requireAgent(next agentHandler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			writeError(rw, http.StatusUnauthorized, protocol.ErrMissingBearerToken)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
		a, ok, err := s.engine.AgentByToken(ctx, token)
		cancel()
		if err != nil {
			s.fail(rw, err)
			return
		}
		if !ok {
			writeError(rw, http.StatusUnauthorized, protocol.ErrInvalidToken)
			return
		}
		if !a.Alive {
			writeError(rw, http.StatusForbidden, protocol.ErrAgentEliminated)
			return
		}
		next(rw, r, a)
	})
}

// BearerToken extracts the credential from an Authorization header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) fail(rw http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Printf("api: %v", err)
	}
	writeError(rw, status, code)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, world.ErrQueueFull),
		errors.Is(err, world.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, protocol.ErrWorldBusy
	case errors.Is(err, world.ErrWorldFinished):
		return http.StatusConflict, protocol.ErrWorldFinished
	case errors.Is(err, world.ErrWorldNotFinished):
		return http.StatusConflict, protocol.ErrWorldNotFinished
	case errors.Is(err, world.ErrNotSurvivor):
		return http.StatusForbidden, protocol.ErrNotASurvivor
	case errors.Is(err, world.ErrUnknownAgent):
		return http.StatusNotFound, protocol.ErrNotFound
	default:
		return http.StatusInternalServerError, protocol.ErrInternal
	}
}

func readBody(rw http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(rw, r.Body, maxBodyBytes))
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code string) {
	writeJSON(rw, status, protocol.ErrorResponse{Error: code})
}
