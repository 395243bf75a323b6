package demand

import "time"

// buyerSetCap bounds per-window memory. Once full, new buyer IDs are
// tallied in overflow so the observed count never drops below the true
// unique count for the window.
const buyerSetCap = 100000

type buyerSet struct {
	ids      map[string]struct{}
	overflow int
}

func newBuyerSet() *buyerSet {
	return &buyerSet{ids: make(map[string]struct{})}
}

func (s *buyerSet) add(id string) {
	if id == "" {
		return
	}
	if _, ok := s.ids[id]; ok {
		return
	}
	if len(s.ids) >= buyerSetCap {
		s.overflow++
		return
	}
	s.ids[id] = struct{}{}
}

func (s *buyerSet) size() int {
	return len(s.ids) + s.overflow
}

// signalWindow accumulates weighted demand over one fixed interval.
// closedAt is zero while the window is current; closed windows never
// mutate.
type signalWindow struct {
	weightedSum float64
	buyers      *buyerSet
	openedAt    time.Time
	closedAt    time.Time
	rawCount    int
}

func newSignalWindow(openedAt time.Time) *signalWindow {
	return &signalWindow{buyers: newBuyerSet(), openedAt: openedAt}
}

func (w *signalWindow) closed() bool { return !w.closedAt.IsZero() }
