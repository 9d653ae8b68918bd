// Package storagetest provides an in-memory storage.Repository for tests
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cortex-community/cortex-engine/internal/models"
)

// Repo keeps all records in maps guarded by one mutex. Submission creation
// can be made to fail through CreateSubmissionErr.
type Repo struct {
	mu          sync.Mutex
	challenges  map[string]*models.Challenge
	submissions map[string]*models.Submission
	members     map[string]*models.Member

	CreateSubmissionErr error
}

// NewRepo creates an empty in-memory repository
func NewRepo() *Repo {
	return &Repo{
		challenges:  make(map[string]*models.Challenge),
		submissions: make(map[string]*models.Submission),
		members:     make(map[string]*models.Member),
	}
}

func (r *Repo) CreateChallenge(_ context.Context, c *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.challenges[c.ID] = &cp
	return nil
}

func (r *Repo) GetChallenge(_ context.Context, id string) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *Repo) UpdateChallenge(_ context.Context, c *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[c.ID]; !ok {
		return fmt.Errorf("challenge not found: %s", c.ID)
	}
	cp := *c
	r.challenges[c.ID] = &cp
	return nil
}

func (r *Repo) ListChallenges(_ context.Context) ([]*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Challenge, 0, len(r.challenges))
	for _, c := range r.challenges {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *Repo) CreateSubmission(_ context.Context, s *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateSubmissionErr != nil {
		return r.CreateSubmissionErr
	}
	cp := *s
	r.submissions[s.ID] = &cp
	return nil
}

func (r *Repo) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *Repo) SubmissionByParticipant(_ context.Context, userID, challengeID string) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submissions {
		if s.UserID == userID && s.ChallengeID == challengeID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Repo) SubmissionByChannel(_ context.Context, channelID string) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submissions {
		if s.ChannelID == channelID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Repo) SubmissionsByChallenge(_ context.Context, challengeID string) ([]*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Submission
	for _, s := range r.submissions {
		if s.ChallengeID == challengeID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Repo) UpdateSubmission(_ context.Context, s *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.submissions[s.ID]; !ok {
		return fmt.Errorf("submission not found: %s", s.ID)
	}
	cp := *s
	r.submissions[s.ID] = &cp
	return nil
}

func (r *Repo) DeleteSubmission(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.submissions[id]; !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	delete(r.submissions, id)
	return nil
}

func (r *Repo) SubmissionsPastRetention(_ context.Context, cutoff time.Time) ([]*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Submission
	for _, s := range r.submissions {
		c, ok := r.challenges[s.ChallengeID]
		if !ok || c.Status != models.ChallengeGraded || c.GradedAt == nil {
			continue
		}
		if c.GradedAt.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Repo) GetMember(_ context.Context, userID string) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *Repo) UpsertMember(_ context.Context, m *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.members[m.UserID] = &cp
	return nil
}

func (r *Repo) TopMembers(_ context.Context, limit int) ([]*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Member, 0, len(r.members))
	for _, m := range r.members {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) Ping(_ context.Context) error { return nil }
func (r *Repo) Close() error                 { return nil }

// Test helpers

// Points returns a member's balance, zero for unknown members
func (r *Repo) Points(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[userID]; ok {
		return m.Points
	}
	return 0
}

// SeedMember stores a member with a balance
func (r *Repo) SeedMember(userID string, points int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[userID] = &models.Member{UserID: userID, Points: points, CreatedAt: time.Now()}
}

// SubmissionCount returns the number of stored submissions
func (r *Repo) SubmissionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.submissions)
}
