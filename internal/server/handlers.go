package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shorlab/shorlab/internal/config"
	"github.com/shorlab/shorlab/internal/modules/circuit"
	"github.com/shorlab/shorlab/internal/modules/factor"
	"github.com/shorlab/shorlab/internal/modules/operator"
	"github.com/shorlab/shorlab/internal/modules/runs"
	"github.com/shorlab/shorlab/internal/modules/sampler"
	"github.com/shorlab/shorlab/pkg/modmath"
)

// Handlers serves the factorization API.
type Handlers struct {
	log       zerolog.Logger
	factorSvc *factor.Service
	runsRepo  *runs.Repository
	asm       *circuit.Assembler
	engine    config.EngineConfig
}

// NewHandlers creates the API handlers.
func NewHandlers(log zerolog.Logger, factorSvc *factor.Service, runsRepo *runs.Repository,
	asm *circuit.Assembler, engine config.EngineConfig) *Handlers {
	return &Handlers{
		log:       log.With().Str("component", "handlers").Logger(),
		factorSvc: factorSvc,
		runsRepo:  runsRepo,
		asm:       asm,
		engine:    engine,
	}
}

// FactorRequest is the body of POST /api/factor.
type FactorRequest struct {
	N                int64   `json:"n"`
	A                int64   `json:"a,omitempty"`
	ControlSize      int     `json:"control_size,omitempty"`
	Shots            int     `json:"shots,omitempty"`
	MaxAttempts      int     `json:"max_attempts,omitempty"`
	KeepAboveHalfMax bool    `json:"keep_above_half_max,omitempty"`
	ConcurrentBases  []int64 `json:"concurrent_bases,omitempty"`
}

// HandleFactor runs a factorization and records it.
// POST /api/factor
func (h *Handlers) HandleFactor(w http.ResponseWriter, r *http.Request) {
	var req FactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	fr := factor.Request{
		N:                req.N,
		A:                req.A,
		ControlSize:      req.ControlSize,
		Shots:            req.Shots,
		MaxAttempts:      req.MaxAttempts,
		KeepAboveHalfMax: req.KeepAboveHalfMax,
	}
	if fr.Shots == 0 {
		fr.Shots = h.engine.Shots
	}
	if fr.MaxAttempts == 0 {
		fr.MaxAttempts = h.engine.MaxAttempts
	}

	var (
		res factor.Result
		err error
	)
	if len(req.ConcurrentBases) > 0 {
		res, err = h.factorSvc.FactorConcurrent(r.Context(), fr, req.ConcurrentBases)
	} else {
		res, err = h.factorSvc.Factor(r.Context(), fr)
	}

	run := runs.Run{
		Modulus:     req.N,
		Base:        res.Base,
		ControlSize: fr.ControlSize,
		Shots:       fr.Shots,
		Found:       res.Found,
		P:           res.P,
		Q:           res.Q,
		Order:       res.Order,
		Attempts:    res.Attempts,
		History:     res.History,
	}
	switch {
	case err != nil:
		run.Status = runs.StatusFailed
		run.Error = err.Error()
	case res.Found:
		run.Status = runs.StatusSucceeded
	default:
		run.Status = runs.StatusExhausted
	}

	if err != nil {
		if isInputError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Infrastructure failure at the sampling boundary; persist the
		// failed run for the record before reporting it.
		if _, recErr := h.runsRepo.Record(r.Context(), run); recErr != nil {
			h.log.Error().Err(recErr).Msg("Failed to record failed run")
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	stored, recErr := h.runsRepo.Record(r.Context(), run)
	if recErr != nil {
		h.log.Error().Err(recErr).Msg("Failed to record run")
		http.Error(w, recErr.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, stored)
}

// HandleListRuns returns recent runs, newest first.
// GET /api/runs?limit=50
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	list, err := h.runsRepo.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []runs.Run{}
	}
	h.writeJSON(w, list)
}

// HandleGetRun returns one stored run.
// GET /api/runs/{id}
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.runsRepo.Get(r.Context(), id)
	if errors.Is(err, runs.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, run)
}

// InspectRequest is the body of POST /api/circuit/inspect.
type InspectRequest struct {
	N           int64 `json:"n"`
	A           int64 `json:"a"`
	ControlSize int   `json:"control_size,omitempty"`
}

// GateView is one gate in an inspection response. Permutation tables are
// omitted; only the structure is reported.
type GateView struct {
	Kind       string `json:"kind"`
	Qubit      int    `json:"qubit,omitempty"`
	Control    int    `json:"control"`
	Multiplier int64  `json:"multiplier,omitempty"`
}

// InspectResponse describes an assembled circuit.
type InspectResponse struct {
	Modulus     int64              `json:"modulus"`
	Base        int64              `json:"base"`
	ControlSize int                `json:"control_size"`
	TargetSize  int                `json:"target_size"`
	Qubits      int                `json:"qubits"`
	Ladder      []int64            `json:"ladder"`
	GateCounts  map[string]int     `json:"gate_counts"`
	Registers   []circuit.Register `json:"registers"`
	Gates       []GateView         `json:"gates"`
}

// HandleInspectCircuit assembles a circuit and reports its structure
// without sampling it.
// POST /api/circuit/inspect
func (h *Handlers) HandleInspectCircuit(w http.ResponseWriter, r *http.Request) {
	var req InspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ControlSize == 0 && req.N > 1 {
		req.ControlSize = 2 * modmath.RegisterSize(req.N)
	}

	c, err := h.asm.Assemble(req.N, req.A, req.ControlSize)
	if err != nil {
		if isInputError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	counts := make(map[string]int)
	gates := make([]GateView, 0, len(c.Gates))
	for _, g := range c.Gates {
		counts[string(g.Kind)]++
		gates = append(gates, GateView{
			Kind:       string(g.Kind),
			Qubit:      g.Qubit,
			Control:    g.Control,
			Multiplier: g.Multiplier,
		})
	}

	h.writeJSON(w, InspectResponse{
		Modulus:     c.Modulus,
		Base:        c.Base,
		ControlSize: c.ControlSize,
		TargetSize:  c.TargetSize,
		Qubits:      c.Qubits(),
		Ladder:      c.Ladder,
		GateCounts:  counts,
		Registers:   c.Registers,
		Gates:       gates,
	})
}

// CompareResponse reports synthesis costs for one multiplication operator.
type CompareResponse struct {
	Modulus    int64                `json:"modulus"`
	Multiplier int64                `json:"multiplier"`
	Generic    *operator.CostReport `json:"generic"`
	Structural *operator.CostReport `json:"structural,omitempty"`
	Note       string               `json:"note,omitempty"`
}

// HandleCompareOperators synthesizes one modular multiplication operator
// with both strategies and reports their costs.
// GET /api/operators/compare?n=15&b=2
func (h *Handlers) HandleCompareOperators(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(r.URL.Query().Get("n"), 10, 64)
	if err != nil {
		http.Error(w, "query parameter n must be an integer", http.StatusBadRequest)
		return
	}
	b, err := strconv.ParseInt(r.URL.Query().Get("b"), 10, 64)
	if err != nil {
		http.Error(w, "query parameter b must be an integer", http.StatusBadRequest)
		return
	}

	generic, err := operator.Build(b, n, operator.StrategyGeneric)
	if err != nil {
		if isInputError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := CompareResponse{Modulus: n, Multiplier: b, Generic: &generic.Cost}
	if structural, err := operator.Build(b, n, operator.StrategyStructural); err == nil {
		resp.Structural = &structural.Cost
	} else if errors.Is(err, operator.ErrStructuralUnavailable) {
		resp.Note = "structural synthesis needs N = 2^k - 1 and a power-of-two multiplier"
	} else {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, resp)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// isInputError reports whether the error is a caller mistake rather than an
// engine or infrastructure failure.
func isInputError(err error) bool {
	return errors.Is(err, circuit.ErrInvalidModulus) ||
		errors.Is(err, circuit.ErrBaseOutOfRange) ||
		errors.Is(err, circuit.ErrInsufficientPrecision) ||
		errors.Is(err, circuit.ErrControlTooLarge) ||
		errors.Is(err, operator.ErrNotCoprime) ||
		errors.Is(err, factor.ErrInvalidRequest) ||
		errors.Is(err, sampler.ErrInvalidShots) ||
		errors.Is(err, sampler.ErrCircuitTooWide)
}
