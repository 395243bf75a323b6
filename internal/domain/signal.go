package domain

import (
	"fmt"
	"time"
)

// SignalKind identifies the origin of a demand signal. The set is closed:
// unknown kinds are rejected at parse time and contribute zero weight if
// they reach the tracker anyway.
type SignalKind string

const (
	SignalAPICall        SignalKind = "API_CALL"
	SignalView           SignalKind = "VIEW"
	SignalWatchlistAdd   SignalKind = "WATCHLIST_ADD"
	SignalSandboxTest    SignalKind = "SANDBOX_TEST"
	SignalSubscription   SignalKind = "SUBSCRIPTION"
	SignalUnsubscription SignalKind = "UNSUBSCRIPTION"
	SignalRateLimited    SignalKind = "RATE_LIMITED"
)

// ParseSignalKind validates a wire-format signal kind.
func ParseSignalKind(s string) (SignalKind, error) {
	k := SignalKind(s)
	switch k {
	case SignalAPICall, SignalView, SignalWatchlistAdd, SignalSandboxTest,
		SignalSubscription, SignalUnsubscription, SignalRateLimited:
		return k, nil
	}
	return "", fmt.Errorf("unknown signal kind: %q", s)
}

// DefaultSignalWeights returns the per-kind base weights. UNSUBSCRIPTION
// carries negative weight so churn drags the window sum down.
func DefaultSignalWeights() map[SignalKind]float64 {
	return map[SignalKind]float64{
		SignalAPICall:        1.0,
		SignalView:           0.1,
		SignalWatchlistAdd:   0.3,
		SignalSandboxTest:    0.5,
		SignalSubscription:   2.0,
		SignalUnsubscription: -1.5,
		SignalRateLimited:    1.5,
	}
}

// MergeSignalWeights overlays overrides onto the defaults. Kinds not in
// the closed enum are dropped.
func MergeSignalWeights(overrides map[SignalKind]float64) map[SignalKind]float64 {
	weights := DefaultSignalWeights()
	for kind, w := range overrides {
		if _, ok := weights[kind]; ok {
			weights[kind] = w
		}
	}
	return weights
}

// DemandSignal is a single demand event for a listing. Weight is a
// per-instance multiplier on the kind weight (1.0 for a plain event).
type DemandSignal struct {
	ListingID string     `json:"listingId"`
	Timestamp time.Time  `json:"timestamp"`
	Type      SignalKind `json:"type"`
	Weight    float64    `json:"weight"`
	BuyerID   string     `json:"buyerId,omitempty"`
}

// NewDemandSignal builds a unit-weight signal stamped now.
func NewDemandSignal(listingID string, kind SignalKind, buyerID string) DemandSignal {
	return DemandSignal{
		ListingID: listingID,
		Timestamp: time.Now(),
		Type:      kind,
		Weight:    1.0,
		BuyerID:   buyerID,
	}
}

// DemandState is the tracker's normalized view of one listing's demand.
type DemandState struct {
	ListingID    string    `json:"listingId"`
	Score        float64   `json:"score"`
	RawSignalSum float64   `json:"rawSignalSum"`
	UniqueBuyers int       `json:"uniqueBuyers"`
	Velocity     float64   `json:"velocity"`
	ComputedAt   time.Time `json:"computedAt"`
	WindowMs     int64     `json:"windowMs"`
}
