package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/dugout/internal/domain/model"
)

const driverPostgres = "postgres"

// Postgres error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore implements Store on a pgx connection pool. Pools and picks
// are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL, pings it and creates the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	st := defaultPostgresSettings()
	for _, opt := range opts {
		opt(&st)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = st.maxConns
	cfg.MinConns = st.minConns
	cfg.MaxConnLifetime = st.maxConnLifetime

	cctx, cancel := context.WithTimeout(ctx, st.connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(cctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(cctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// pgConstraintError maps a constraint violation to its storage kind: unique
// violations become onUnique and foreign key violations ErrNotFound. Other
// errors map to nil.
func pgConstraintError(err, onUnique error) error {
	switch pgCode(err) {
	case pgUniqueViolation:
		return onUnique
	case pgForeignKeyViolation:
		return ErrNotFound
	}
	return nil
}

const pgChallengeColumns = `id, title, rule, pick_limit, players_pool,
	COALESCE(to_char(challenge_date, 'YYYY-MM-DD'), ''), created_at`

func scanChallenge(row pgx.Row) (model.Challenge, error) {
	var c model.Challenge
	err := row.Scan(&c.ID, &c.Title, &c.Rule, &c.PickLimit, &c.Pool, &c.ChallengeDate, &c.CreatedAt)
	return c, err
}

func (s *PostgresStore) queryChallenges(ctx context.Context, query string, args ...any) ([]model.Challenge, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Challenge, 0)
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListChallenges(ctx context.Context) ([]model.Challenge, error) {
	defer observe(driverPostgres, "list_challenges", time.Now())
	out, err := s.queryChallenges(ctx, `SELECT `+pgChallengeColumns+` FROM challenges
		ORDER BY challenge_date ASC NULLS LAST, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	defer observe(driverPostgres, "get_challenge", time.Now())
	c, err := scanChallenge(s.pool.QueryRow(ctx, `SELECT `+pgChallengeColumns+` FROM challenges WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) ChallengeForDate(ctx context.Context, date string) (*model.Challenge, error) {
	defer observe(driverPostgres, "challenge_for_date", time.Now())
	c, err := scanChallenge(s.pool.QueryRow(ctx, `SELECT `+pgChallengeColumns+` FROM challenges
		WHERE challenge_date = $1::date ORDER BY created_at, id LIMIT 1`, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("challenge for %s: %w", date, err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateChallenge(ctx context.Context, c *model.Challenge) error {
	defer observe(driverPostgres, "create_challenge", time.Now())
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO challenges
		(id, title, rule, pick_limit, players_pool, challenge_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::date, $7)`,
		c.ID, c.Title, c.Rule, c.PickLimit, c.Pool, c.ChallengeDate, c.CreatedAt)
	if kind := pgConstraintError(err, ErrChallengeExists); kind != nil {
		return kind
	}
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearChallenges(ctx context.Context) (int, error) {
	defer observe(driverPostgres, "clear_challenges", time.Now())
	// Attempts go with their challenge through ON DELETE CASCADE.
	tag, err := s.pool.Exec(ctx, `DELETE FROM challenges`)
	if err != nil {
		return 0, fmt.Errorf("delete challenges: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const pgAttemptColumns = `id, user_id, challenge_id, score, picks, created_at`

func scanAttempt(row pgx.Row) (model.Attempt, error) {
	var a model.Attempt
	err := row.Scan(&a.ID, &a.UserID, &a.ChallengeID, &a.Score, &a.Picks, &a.CreatedAt)
	return a, err
}

func (s *PostgresStore) InsertAttempt(ctx context.Context, a *model.Attempt) error {
	defer observe(driverPostgres, "insert_attempt", time.Now())
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO challenge_attempts (`+pgAttemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.ChallengeID, a.Score, a.Picks, a.CreatedAt)
	if kind := pgConstraintError(err, ErrAttemptExists); kind != nil {
		return kind
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryAttempts(ctx context.Context, query string, args ...any) ([]model.Attempt, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAttempt(ctx context.Context, userID, challengeID string) (*model.Attempt, error) {
	defer observe(driverPostgres, "get_attempt", time.Now())
	a, err := scanAttempt(s.pool.QueryRow(ctx, `SELECT `+pgAttemptColumns+` FROM challenge_attempts
		WHERE user_id = $1 AND challenge_id = $2`, userID, challengeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAttemptsByChallenge(ctx context.Context, challengeID string) ([]model.Attempt, error) {
	defer observe(driverPostgres, "list_attempts_by_challenge", time.Now())
	return s.queryAttempts(ctx, `SELECT `+pgAttemptColumns+` FROM challenge_attempts
		WHERE challenge_id = $1 ORDER BY created_at, id`, challengeID)
}

func (s *PostgresStore) ListAttemptsByUser(ctx context.Context, userID string) ([]model.Attempt, error) {
	defer observe(driverPostgres, "list_attempts_by_user", time.Now())
	return s.queryAttempts(ctx, `SELECT `+pgAttemptColumns+` FROM challenge_attempts
		WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

func (s *PostgresStore) ListAllAttempts(ctx context.Context) ([]model.Attempt, error) {
	defer observe(driverPostgres, "list_all_attempts", time.Now())
	return s.queryAttempts(ctx, `SELECT `+pgAttemptColumns+` FROM challenge_attempts ORDER BY created_at, id`)
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p model.Profile) error {
	defer observe(driverPostgres, "upsert_profile", time.Now())
	_, err := s.pool.Exec(ctx, `INSERT INTO profiles (user_id, username) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username`, p.UserID, p.Username)
	if kind := pgConstraintError(err, ErrUsernameTaken); kind != nil {
		return kind
	}
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	defer observe(driverPostgres, "usernames", time.Now())
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT user_id, username FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("usernames: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
