// Package points implements the member points economy: balances, staff
// adjustments, member-to-member payments and the leaderboard.
package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cortex-community/cortex-engine/internal/guard"
	"github.com/cortex-community/cortex-engine/internal/models"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSelfTarget is returned when an actor targets their own balance
	ErrSelfTarget = errors.New("cannot target your own balance")

	// ErrInsufficientPoints is returned when a payment exceeds the payer's
	// balance
	ErrInsufficientPoints = errors.New("insufficient points")
)

// MemberStore is the slice of persistence the points economy needs
type MemberStore interface {
	GetMember(ctx context.Context, userID string) (*models.Member, error)
	UpsertMember(ctx context.Context, m *models.Member) error
	TopMembers(ctx context.Context, limit int) ([]*models.Member, error)
}

// Service manages member point balances
type Service struct {
	repo   MemberStore
	locks  *guard.KeyedMutex
	logger *slog.Logger
}

// NewService creates a new points service
func NewService(repo MemberStore, locks *guard.KeyedMutex) *Service {
	return &Service{
		repo:   repo,
		locks:  locks,
		logger: slog.Default().With("component", "points"),
	}
}

// Get returns a member's balance. Unknown members have zero points.
func (s *Service) Get(ctx context.Context, userID string) (int, error) {
	member, err := s.repo.GetMember(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read member: %w", err)
	}
	if member == nil {
		return 0, nil
	}
	return member.Points, nil
}

// Give adds points to a target's balance. Actors cannot award themselves.
func (s *Service) Give(ctx context.Context, actorID, targetID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if actorID == targetID {
		return 0, ErrSelfTarget
	}

	balance, err := s.adjust(ctx, targetID, amount)
	if err != nil {
		return 0, err
	}

	s.logger.Info("points given", "actor_id", actorID, "target_id", targetID, "amount", amount, "balance", balance)
	return balance, nil
}

// Take removes points from a target's balance, clamping at zero. Actors
// cannot take from themselves.
func (s *Service) Take(ctx context.Context, actorID, targetID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if actorID == targetID {
		return 0, ErrSelfTarget
	}

	key := "points:" + targetID
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	member, err := s.loadOrInit(ctx, targetID)
	if err != nil {
		return 0, err
	}

	member.Points -= amount
	if member.Points < 0 {
		member.Points = 0
	}

	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return 0, fmt.Errorf("failed to persist balance: %w", err)
	}

	s.logger.Info("points taken", "actor_id", actorID, "target_id", targetID, "amount", amount, "balance", member.Points)
	return member.Points, nil
}

// Set overwrites a target's balance
func (s *Service) Set(ctx context.Context, targetID string, amount int) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	key := "points:" + targetID
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	member, err := s.loadOrInit(ctx, targetID)
	if err != nil {
		return err
	}
	member.Points = amount

	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return fmt.Errorf("failed to persist balance: %w", err)
	}
	return nil
}

// Pay transfers points from the actor to the target. Both balances are
// held under their locks for the whole transfer, acquired in sorted order
// so two members paying each other cannot deadlock.
func (s *Service) Pay(ctx context.Context, actorID, targetID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if actorID == targetID {
		return 0, ErrSelfTarget
	}

	first, second := "points:"+actorID, "points:"+targetID
	if second < first {
		first, second = second, first
	}
	s.locks.Lock(first)
	defer s.locks.Unlock(first)
	s.locks.Lock(second)
	defer s.locks.Unlock(second)

	payer, err := s.loadOrInit(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if payer.Points < amount {
		return 0, ErrInsufficientPoints
	}

	payee, err := s.loadOrInit(ctx, targetID)
	if err != nil {
		return 0, err
	}

	payer.Points -= amount
	if err := s.repo.UpsertMember(ctx, payer); err != nil {
		return 0, fmt.Errorf("failed to debit payer: %w", err)
	}

	payee.Points += amount
	if err := s.repo.UpsertMember(ctx, payee); err != nil {
		// Credit failed after the debit; restore the payer
		payer.Points += amount
		if rbErr := s.repo.UpsertMember(ctx, payer); rbErr != nil {
			s.logger.Error("failed to restore payer after credit failure",
				"actor_id", actorID, "amount", amount, "error", rbErr)
		}
		return 0, fmt.Errorf("failed to credit payee: %w", err)
	}

	s.logger.Info("points paid", "actor_id", actorID, "target_id", targetID, "amount", amount)
	return payer.Points, nil
}

// Leaderboard returns the top members by balance
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*models.Member, error) {
	if limit <= 0 {
		limit = 10
	}
	members, err := s.repo.TopMembers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return members, nil
}

func (s *Service) adjust(ctx context.Context, userID string, delta int) (int, error) {
	key := "points:" + userID
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	member, err := s.loadOrInit(ctx, userID)
	if err != nil {
		return 0, err
	}
	member.Points += delta

	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return 0, fmt.Errorf("failed to persist balance: %w", err)
	}
	return member.Points, nil
}

func (s *Service) loadOrInit(ctx context.Context, userID string) (*models.Member, error) {
	member, err := s.repo.GetMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read member: %w", err)
	}
	if member == nil {
		member = &models.Member{UserID: userID, CreatedAt: time.Now()}
	}
	return member, nil
}
