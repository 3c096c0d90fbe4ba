package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used by tests and EVENT_STORE=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	order []*Event
	byID  map[string]*Event
	flags map[string]map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Event), flags: make(map[string]map[string]bool)}
}

func (s *MemoryStore) Append(_ context.Context, e Event) error {
	e, err := normalize(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.ID]; ok {
		return nil
	}
	rec := e
	s.byID[e.ID] = &rec
	s.order = append(s.order, &rec)
	return nil
}

func (s *MemoryStore) MarkDeleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Deleted = true
	return nil
}

func (s *MemoryStore) AppendEdit(_ context.Context, id string, at time.Time, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Edits = append(e.Edits, Edit{At: at.UTC().Truncate(time.Millisecond), Content: content})
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	cp.Edits = append([]Edit(nil), e.Edits...)
	return &cp, nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.order {
		if q.matches(e) {
			cp := *e
			cp.Edits = nil
			out = append(out, cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetChannelExcluded(_ context.Context, guildID, channelID string, excluded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.flags[guildID]
	if g == nil {
		g = make(map[string]bool)
		s.flags[guildID] = g
	}
	if excluded {
		g[channelID] = true
	} else {
		delete(g, channelID)
	}
	return nil
}

func (s *MemoryStore) ExcludedChannels(_ context.Context, guildID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.flags[guildID]))
	for ch := range s.flags[guildID] {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
