package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexusx/pricer/internal/demand"
	"github.com/nexusx/pricer/internal/domain"
	"github.com/nexusx/pricer/internal/updater"
)

type healthResponse struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Database  string              `json:"database,omitempty"`
	Breaker   string              `json:"breaker,omitempty"`
	LastCycle *updater.CycleStats `json:"lastCycle,omitempty"`
	Tracker   demand.Stats        `json:"tracker"`
	Counters  *healthCounters     `json:"counters,omitempty"`
}

// healthCounters is a point-in-time read of the worker counters, so a
// health probe sees delivery problems without scraping /metrics.
type healthCounters struct {
	Cycles            float64 `json:"cycles"`
	CycleOverruns     float64 `json:"cycleOverruns"`
	PublishErrors     float64 `json:"publishErrors"`
	PriceWriteErrors  float64 `json:"priceWriteErrors"`
	ListingsAtCeiling float64 `json:"listingsAtCeiling"`
	ListingsAtFloor   float64 `json:"listingsAtFloor"`
}

func (s *Server) counterSnapshot() *healthCounters {
	var snap healthCounters
	var firstErr error
	keep := func(v float64, err error) float64 {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	}

	snap.Cycles = keep(s.reg.CounterValue(s.reg.CyclesTotal))
	snap.CycleOverruns = keep(s.reg.CounterValue(s.reg.CycleOverruns))
	snap.PublishErrors = keep(s.reg.CounterValue(s.reg.PublishErrors))
	snap.PriceWriteErrors = keep(s.reg.CounterValue(s.reg.PriceWriteErrors))
	snap.ListingsAtCeiling = keep(s.reg.GaugeValue(s.reg.ListingsAtCeiling))
	snap.ListingsAtFloor = keep(s.reg.GaugeValue(s.reg.ListingsAtFloor))

	if firstErr != nil {
		log.Error().Err(firstErr).Msg("Failed to snapshot health counters")
		return nil
	}
	return &snap
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Tracker:   s.tracker.GetStats(),
		Counters:  s.counterSnapshot(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
		} else {
			resp.Database = "ok"
		}
	}

	if s.cycles != nil {
		resp.Breaker = s.cycles.BreakerState()
		last := s.cycles.LastCycle()
		if !last.StartedAt.IsZero() {
			resp.LastCycle = &last
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type simulateRequest struct {
	FloorPrice      float64 `json:"floorPrice"`
	DemandScore     float64 `json:"demandScore"`
	CompetitorCount int     `json:"competitorCount"`
	QualityScore    float64 `json:"qualityScore"`
}

type simulateResponse struct {
	Price       float64                 `json:"price"`
	Multipliers domain.PriceMultipliers `json:"multipliers"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if !s.simLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "simulation rate limit exceeded")
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed simulate request")
		return
	}
	if req.FloorPrice <= 0 {
		writeError(w, http.StatusBadRequest, "floorPrice must be > 0")
		return
	}

	price, multipliers := s.engine.SimulatePrice(req.FloorPrice, req.DemandScore, req.CompetitorCount, req.QualityScore)
	writeJSON(w, http.StatusOK, simulateResponse{Price: price, Multipliers: multipliers})
}

type signalRequest struct {
	ListingID string `json:"listingId"`
	Type      string `json:"type"`
	// Weight is a pointer so an explicit zero survives: absent defaults
	// to 1.0, a literal 0 passes through.
	Weight  *float64 `json:"weight"`
	BuyerID string   `json:"buyerId"`
}

type signalsResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	var reqs []signalRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "malformed signal batch")
		return
	}

	resp := signalsResponse{}
	for _, req := range reqs {
		kind, err := domain.ParseSignalKind(req.Type)
		if err != nil || req.ListingID == "" {
			resp.Rejected++
			continue
		}
		weight := 1.0
		if req.Weight != nil {
			weight = *req.Weight
		}
		s.tracker.IngestSignal(domain.DemandSignal{
			ListingID: req.ListingID,
			Timestamp: time.Now(),
			Type:      kind,
			Weight:    weight,
			BuyerID:   req.BuyerID,
		})
		s.reg.SignalsIngested.WithLabelValues(string(kind)).Inc()
		resp.Accepted++
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePercentiles(w http.ResponseWriter, r *http.Request) {
	var update demand.PercentileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "malformed percentile update")
		return
	}
	s.tracker.UpdatePercentiles(update)
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode HTTP response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
