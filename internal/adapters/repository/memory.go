package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/dugout/internal/domain/model"
)

const driverMemory = "memory"

// MemoryStore is a Store kept in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	challenges map[string]model.Challenge
	attempts   []model.Attempt
	byPair     map[pair]int
	profiles   map[string]string
	now        func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]model.Challenge),
		byPair:     make(map[pair]int),
		profiles:   make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// pair identifies a user's attempt on a challenge.
type pair struct{ user, challenge string }

func cloneChallenge(c model.Challenge) model.Challenge {
	c.Pool = slices.Clone(c.Pool)
	for i := range c.Pool {
		c.Pool[i].Stats = maps.Clone(c.Pool[i].Stats)
	}
	return c
}

func cloneAttempt(a model.Attempt) model.Attempt {
	a.Picks = slices.Clone(a.Picks)
	return a
}

// compareChallenges orders by date with undated challenges last, then by
// creation time and id.
func compareChallenges(a, b model.Challenge) int {
	if (a.ChallengeDate == "") != (b.ChallengeDate == "") {
		if a.ChallengeDate == "" {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(a.ChallengeDate, b.ChallengeDate); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *MemoryStore) ListChallenges(ctx context.Context) ([]model.Challenge, error) {
	defer observe(driverMemory, "list_challenges", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		out = append(out, cloneChallenge(c))
	}
	slices.SortFunc(out, compareChallenges)
	return out, nil
}

func (s *MemoryStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	defer observe(driverMemory, "get_challenge", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	c = cloneChallenge(c)
	return &c, nil
}

func (s *MemoryStore) ChallengeForDate(ctx context.Context, date string) (*model.Challenge, error) {
	defer observe(driverMemory, "challenge_for_date", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.Challenge
	for _, c := range s.challenges {
		if c.ChallengeDate != date {
			continue
		}
		if found == nil || compareChallenges(c, *found) < 0 {
			cc := c
			found = &cc
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	c := cloneChallenge(*found)
	return &c, nil
}

func (s *MemoryStore) CreateChallenge(ctx context.Context, c *model.Challenge) error {
	defer observe(driverMemory, "create_challenge", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.challenges[c.ID]; exists {
		return ErrChallengeExists
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.challenges[c.ID] = cloneChallenge(*c)
	return nil
}

func (s *MemoryStore) ClearChallenges(ctx context.Context) (int, error) {
	defer observe(driverMemory, "clear_challenges", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.challenges)
	s.challenges = make(map[string]model.Challenge)
	s.attempts = nil
	s.byPair = make(map[pair]int)
	return n, nil
}

func (s *MemoryStore) InsertAttempt(ctx context.Context, a *model.Attempt) error {
	defer observe(driverMemory, "insert_attempt", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[a.ChallengeID]; !ok {
		return ErrNotFound
	}
	key := pair{a.UserID, a.ChallengeID}
	if _, exists := s.byPair[key]; exists {
		return ErrAttemptExists
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.byPair[key] = len(s.attempts)
	s.attempts = append(s.attempts, cloneAttempt(*a))
	return nil
}

func (s *MemoryStore) GetAttempt(ctx context.Context, userID, challengeID string) (*model.Attempt, error) {
	defer observe(driverMemory, "get_attempt", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byPair[pair{userID, challengeID}]
	if !ok {
		return nil, ErrNotFound
	}
	a := cloneAttempt(s.attempts[idx])
	return &a, nil
}

func (s *MemoryStore) filterAttempts(keep func(model.Attempt) bool) []model.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Attempt, 0)
	for _, a := range s.attempts {
		if keep(a) {
			out = append(out, cloneAttempt(a))
		}
	}
	return out
}

func (s *MemoryStore) ListAttemptsByChallenge(ctx context.Context, challengeID string) ([]model.Attempt, error) {
	defer observe(driverMemory, "list_attempts_by_challenge", time.Now())
	return s.filterAttempts(func(a model.Attempt) bool { return a.ChallengeID == challengeID }), nil
}

func (s *MemoryStore) ListAttemptsByUser(ctx context.Context, userID string) ([]model.Attempt, error) {
	defer observe(driverMemory, "list_attempts_by_user", time.Now())
	return s.filterAttempts(func(a model.Attempt) bool { return a.UserID == userID }), nil
}

func (s *MemoryStore) ListAllAttempts(ctx context.Context) ([]model.Attempt, error) {
	defer observe(driverMemory, "list_all_attempts", time.Now())
	return s.filterAttempts(func(model.Attempt) bool { return true }), nil
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, p model.Profile) error {
	defer observe(driverMemory, "upsert_profile", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, name := range s.profiles {
		if name == p.Username && userID != p.UserID {
			return ErrUsernameTaken
		}
	}
	s.profiles[p.UserID] = p.Username
	return nil
}

func (s *MemoryStore) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	defer observe(driverMemory, "usernames", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := s.profiles[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
