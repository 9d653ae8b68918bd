package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cortex-community/cortex-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Set pool configuration
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Challenges ---

// CreateChallenge creates a new challenge record
func (r *PostgresRepository) CreateChallenge(ctx context.Context, c *models.Challenge) error {
	query := `
		INSERT INTO challenges (id, name, status, reward_points, created_at, closed_at, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		string(c.Status),
		c.RewardPoints,
		c.CreatedAt,
		nullTime(c.ClosedAt),
		nullTime(c.GradedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil
}

// GetChallenge retrieves a challenge by ID
func (r *PostgresRepository) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	query := `
		SELECT id, name, status, reward_points, created_at, closed_at, graded_at
		FROM challenges
		WHERE id = $1
	`

	c, err := scanChallenge(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return c, nil
}

// UpdateChallenge updates an existing challenge
func (r *PostgresRepository) UpdateChallenge(ctx context.Context, c *models.Challenge) error {
	query := `
		UPDATE challenges
		SET name = $2, status = $3, reward_points = $4, closed_at = $5, graded_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		string(c.Status),
		c.RewardPoints,
		nullTime(c.ClosedAt),
		nullTime(c.GradedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("challenge not found: %s", c.ID)
	}

	return nil
}

// ListChallenges returns all challenges, newest first
func (r *PostgresRepository) ListChallenges(ctx context.Context) ([]*models.Challenge, error) {
	query := `
		SELECT id, name, status, reward_points, created_at, closed_at, graded_at
		FROM challenges
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*models.Challenge

	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	return challenges, nil
}

// --- Submissions ---

// CreateSubmission creates a new submission record
func (r *PostgresRepository) CreateSubmission(ctx context.Context, s *models.Submission) error {
	query := `
		INSERT INTO submissions (id, challenge_id, user_id, channel_id, grade, created_at, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.ChallengeID,
		s.UserID,
		s.ChannelID,
		string(s.Grade),
		s.CreatedAt,
		nullTime(s.GradedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// GetSubmission retrieves a submission by ID
func (r *PostgresRepository) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	return r.getSubmission(ctx, "id", id)
}

// SubmissionByChannel retrieves the submission owning a channel
func (r *PostgresRepository) SubmissionByChannel(ctx context.Context, channelID string) (*models.Submission, error) {
	return r.getSubmission(ctx, "channel_id", channelID)
}

func (r *PostgresRepository) getSubmission(ctx context.Context, field, value string) (*models.Submission, error) {
	query := fmt.Sprintf(`
		SELECT id, challenge_id, user_id, channel_id, grade, created_at, graded_at
		FROM submissions
		WHERE %s = $1
	`, field)

	s, err := scanSubmission(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return s, nil
}

// SubmissionByParticipant retrieves a participant's submission for a challenge
func (r *PostgresRepository) SubmissionByParticipant(ctx context.Context, userID, challengeID string) (*models.Submission, error) {
	query := `
		SELECT id, challenge_id, user_id, channel_id, grade, created_at, graded_at
		FROM submissions
		WHERE user_id = $1 AND challenge_id = $2
	`

	s, err := scanSubmission(r.pool.QueryRow(ctx, query, userID, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return s, nil
}

// SubmissionsByChallenge returns all submissions for a challenge
func (r *PostgresRepository) SubmissionsByChallenge(ctx context.Context, challengeID string) ([]*models.Submission, error) {
	query := `
		SELECT id, challenge_id, user_id, channel_id, grade, created_at, graded_at
		FROM submissions
		WHERE challenge_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*models.Submission

	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return submissions, nil
}

// UpdateSubmission updates an existing submission
func (r *PostgresRepository) UpdateSubmission(ctx context.Context, s *models.Submission) error {
	query := `
		UPDATE submissions
		SET challenge_id = $2, user_id = $3, channel_id = $4, grade = $5, graded_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.ChallengeID,
		s.UserID,
		s.ChannelID,
		string(s.Grade),
		nullTime(s.GradedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %s", s.ID)
	}

	return nil
}

// DeleteSubmission deletes a submission by ID
func (r *PostgresRepository) DeleteSubmission(ctx context.Context, id string) error {
	query := `DELETE FROM submissions WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}

	return nil
}

// SubmissionsPastRetention returns submissions of challenges graded before the cutoff
func (r *PostgresRepository) SubmissionsPastRetention(ctx context.Context, cutoff time.Time) ([]*models.Submission, error) {
	query := `
		SELECT s.id, s.challenge_id, s.user_id, s.channel_id, s.grade, s.created_at, s.graded_at
		FROM submissions s
		JOIN challenges c ON c.id = s.challenge_id
		WHERE c.status = 'graded'
		  AND c.graded_at < $1
		ORDER BY s.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions past retention: %w", err)
	}
	defer rows.Close()

	var submissions []*models.Submission

	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return submissions, nil
}

// --- Members ---

// GetMember retrieves a member by user ID
func (r *PostgresRepository) GetMember(ctx context.Context, userID string) (*models.Member, error) {
	query := `
		SELECT user_id, points, created_at
		FROM members
		WHERE user_id = $1
	`

	var m models.Member

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&m.UserID,
		&m.Points,
		&m.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &m, nil
}

// UpsertMember inserts or updates a member's point balance
func (r *PostgresRepository) UpsertMember(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (user_id, points, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET points = EXCLUDED.points
	`

	_, err := r.pool.Exec(ctx, query, m.UserID, m.Points, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	return nil
}

// TopMembers returns members ordered by points, highest first
func (r *PostgresRepository) TopMembers(ctx context.Context, limit int) ([]*models.Member, error) {
	query := `
		SELECT user_id, points, created_at
		FROM members
		ORDER BY points DESC, user_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member

	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Points, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// --- Scan helpers ---

func scanChallenge(row pgx.Row) (*models.Challenge, error) {
	var c models.Challenge
	var statusStr string
	var closedAt, gradedAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.Name,
		&statusStr,
		&c.RewardPoints,
		&c.CreatedAt,
		&closedAt,
		&gradedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = models.ChallengeStatus(statusStr)

	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	if gradedAt.Valid {
		c.GradedAt = &gradedAt.Time
	}

	return &c, nil
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	var gradeStr string
	var gradedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.ChallengeID,
		&s.UserID,
		&s.ChannelID,
		&gradeStr,
		&s.CreatedAt,
		&gradedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Grade = models.Grade(gradeStr)

	if gradedAt.Valid {
		s.GradedAt = &gradedAt.Time
	}

	return &s, nil
}

// Helper functions for nullable values

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
