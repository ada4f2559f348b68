package api

import (
	"sync"

	"property-underwriter/models"
)

// session is one analysis plus the artefacts produced for it since.
type session struct {
	analysis    *models.Analysis
	insightKind string
	insight     string
	chartKind   string
	chart       []byte
}

func (s *session) report() *models.Report {
	return &models.Report{
		Analysis:    s.analysis,
		InsightKind: s.insightKind,
		Insight:     s.insight,
		ChartKind:   s.chartKind,
		Chart:       s.chart,
	}
}

// sessionStore keeps the most recent analyses in memory. The oldest entry is
// evicted once the limit is reached; nothing outlives the process.
type sessionStore struct {
	mu    sync.Mutex
	limit int
	order []string
	items map[string]*session
}

func newSessionStore(limit int) *sessionStore {
	if limit < 1 {
		limit = 64
	}
	return &sessionStore{limit: limit, items: make(map[string]*session)}
}

func (s *sessionStore) put(a *models.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.items[a.ID] = &session{analysis: a}
	for len(s.order) > s.limit {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
}

// get returns a copy so handlers never share mutable state.
func (s *sessionStore) get(id string) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return session{}, false
	}
	return *e, true
}

func (s *sessionStore) update(id string, fn func(*session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if ok {
		fn(e)
	}
	return ok
}
