// Package progress reads a learner's assessment history, missed-question log
// and study progress. Keys are raw "discipline::subtopic" strings as stored
// upstream; callers normalize them with topickey.Normalize.
package progress

import (
	"context"
	"sync"
	"time"
)

// ErrorCount is the wrong/total answer count for one topic.
type ErrorCount struct {
	Wrong int `json:"wrong"`
	Total int `json:"total"`
}

// AssessmentHistoryRepository returns exact wrong/total pairs from graded assessments.
type AssessmentHistoryRepository interface {
	ErrorStatsByTopic(ctx context.Context, userID string) (map[string]ErrorCount, error)
}

// MissedQuestionLogRepository returns wrong-only counts from the missed-question log.
type MissedQuestionLogRepository interface {
	ErrorCountsByTopic(ctx context.Context, userID string) (map[string]int, error)
}

// UserProgressRepository exposes what a learner has studied and when they were last assessed.
type UserProgressRepository interface {
	DistinctStudiedTopicKeys(ctx context.Context, userID string) ([]string, error)
	LatestAssessmentTimestamp(ctx context.Context, userID string) (*time.Time, error)
}

// MemoryStore implements all three repositories in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string]map[string]ErrorCount
	missed      map[string]map[string]int
	studied     map[string][]string
	assessedAt  map[string]time.Time
}

// NewMemoryStore creates an empty in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[string]map[string]ErrorCount),
		missed:      make(map[string]map[string]int),
		studied:     make(map[string][]string),
		assessedAt:  make(map[string]time.Time),
	}
}

// RecordAnswer adds one graded answer for topicKey and advances the user's
// latest assessment timestamp to at.
func (s *MemoryStore) RecordAnswer(userID, topicKey string, correct bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTopic := s.assessments[userID]
	if byTopic == nil {
		byTopic = make(map[string]ErrorCount)
		s.assessments[userID] = byTopic
	}
	c := byTopic[topicKey]
	c.Total++
	if !correct {
		c.Wrong++
	}
	byTopic[topicKey] = c

	if at.After(s.assessedAt[userID]) {
		s.assessedAt[userID] = at
	}
}

// RecordMiss logs one missed question for topicKey.
func (s *MemoryStore) RecordMiss(userID, topicKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTopic := s.missed[userID]
	if byTopic == nil {
		byTopic = make(map[string]int)
		s.missed[userID] = byTopic
	}
	byTopic[topicKey]++
}

// MarkStudied records that the user has studied topicKey.
func (s *MemoryStore) MarkStudied(userID, topicKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.studied[userID] {
		if k == topicKey {
			return
		}
	}
	s.studied[userID] = append(s.studied[userID], topicKey)
}

func (s *MemoryStore) ErrorStatsByTopic(_ context.Context, userID string) (map[string]ErrorCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]ErrorCount, len(s.assessments[userID]))
	for k, v := range s.assessments[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) ErrorCountsByTopic(_ context.Context, userID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.missed[userID]))
	for k, v := range s.missed[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) DistinctStudiedTopicKeys(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.studied[userID]...), nil
}

func (s *MemoryStore) LatestAssessmentTimestamp(_ context.Context, userID string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.assessedAt[userID]
	if !ok {
		return nil, nil
	}
	return &at, nil
}
