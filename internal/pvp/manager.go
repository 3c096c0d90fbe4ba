package pvp

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgs      = errors.New("invalid arguments")
	ErrSelfChallenge    = errors.New("cannot challenge yourself")
	ErrAlreadyPending   = errors.New("target already has a pending challenge")
	ErrNoPendingForUser = errors.New("no pending challenge for target user")
)

// DefaultTTL bounds how long a challenge waits for an answer.
const DefaultTTL = 10 * time.Minute

type Manager struct {
	mu sync.Mutex
	// targetID -> pending challenge
	byTarget map[string]*Challenge
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{byTarget: make(map[string]*Challenge), ttl: ttl, now: time.Now}
}

// CreateChallenge registers a pending challenge. Each target holds at most
// one live challenge; expired ones are replaced.
func (m *Manager) CreateChallenge(channelID, challengerID, challengerName, targetID, targetName string) (*Challenge, error) {
	channelID, challengerID, targetID = strings.TrimSpace(channelID), strings.TrimSpace(challengerID), strings.TrimSpace(targetID)
	if channelID == "" || challengerID == "" || targetID == "" {
		return nil, ErrInvalidArgs
	}
	if challengerID == targetID {
		return nil, ErrSelfChallenge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur := m.pendingLocked(targetID, now); cur != nil {
		return nil, ErrAlreadyPending
	}
	ch := &Challenge{
		ID:             uuid.NewString(),
		ChannelID:      channelID,
		ChallengerID:   challengerID,
		ChallengerName: challengerName,
		TargetID:       targetID,
		TargetName:     targetName,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.ttl),
		Status:         StatusPending,
	}
	m.byTarget[targetID] = ch
	return ch, nil
}

// Accept resolves the target's pending challenge. The caller starts the game.
func (m *Manager) Accept(targetID string) (*Challenge, error) {
	return m.resolve(targetID, StatusAccepted)
}

func (m *Manager) Decline(targetID string) (*Challenge, error) {
	return m.resolve(targetID, StatusDeclined)
}

// Pending returns the live challenge addressed to targetID, if any.
func (m *Manager) Pending(targetID string) (*Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.pendingLocked(strings.TrimSpace(targetID), m.now())
	if ch == nil {
		return nil, false
	}
	cp := *ch
	return &cp, true
}

// Sweep drops expired challenges and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for target, ch := range m.byTarget {
		if ch.expired(now) {
			ch.Status = StatusExpired
			delete(m.byTarget, target)
			n++
		}
	}
	return n
}

func (m *Manager) resolve(targetID string, status Status) (*Challenge, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.pendingLocked(targetID, m.now())
	if ch == nil {
		return nil, ErrNoPendingForUser
	}
	delete(m.byTarget, targetID)
	ch.Status = status
	return ch, nil
}

func (m *Manager) pendingLocked(targetID string, now time.Time) *Challenge {
	ch, ok := m.byTarget[targetID]
	if !ok {
		return nil
	}
	if ch.expired(now) {
		ch.Status = StatusExpired
		delete(m.byTarget, targetID)
		return nil
	}
	return ch
}
