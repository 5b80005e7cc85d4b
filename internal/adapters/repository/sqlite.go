package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/okian/dugout/internal/domain/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const driverSQLite = "sqlite"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite. Pools and picks are stored as
// JSON text and timestamps as fixed-width UTC text.
type SQLiteStore struct {
	db *sqlx.DB
}

type challengeRow struct {
	ID            string `db:"id"`
	Title         string `db:"title"`
	Rule          string `db:"rule"`
	PickLimit     int    `db:"pick_limit"`
	PoolJSON      string `db:"players_pool"`
	ChallengeDate string `db:"challenge_date"`
	CreatedAt     string `db:"created_at"`
}

func (r challengeRow) toModel() (model.Challenge, error) {
	c := model.Challenge{
		ID:            r.ID,
		Title:         r.Title,
		Rule:          r.Rule,
		PickLimit:     r.PickLimit,
		ChallengeDate: r.ChallengeDate,
	}
	if err := json.Unmarshal([]byte(r.PoolJSON), &c.Pool); err != nil {
		return c, fmt.Errorf("decode players_pool of %s: %w", r.ID, err)
	}
	t, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return c, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
	}
	c.CreatedAt = t
	return c, nil
}

type attemptRow struct {
	ID          string  `db:"id"`
	UserID      string  `db:"user_id"`
	ChallengeID string  `db:"challenge_id"`
	Score       float64 `db:"score"`
	PicksJSON   string  `db:"picks"`
	CreatedAt   string  `db:"created_at"`
}

func (r attemptRow) toModel() (model.Attempt, error) {
	a := model.Attempt{ID: r.ID, UserID: r.UserID, ChallengeID: r.ChallengeID, Score: r.Score}
	if err := json.Unmarshal([]byte(r.PicksJSON), &a.Picks); err != nil {
		return a, fmt.Errorf("decode picks of %s: %w", r.ID, err)
	}
	t, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return a, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
	}
	a.CreatedAt = t
	return a, nil
}

// NewSQLiteStore opens a SQLite database and runs migrations. Use ":memory:"
// for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: an in-memory database is per connection and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// constraintKind classifies a SQLite constraint violation by message.
func constraintKind(err error) string {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return ""
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY"):
		return "foreign_key"
	case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
		return "unique"
	}
	return "other"
}

const challengeColumns = `id, title, rule, pick_limit, players_pool, challenge_date, created_at`

func (s *SQLiteStore) scanChallenges(ctx context.Context, query string, args ...any) ([]model.Challenge, error) {
	var rows []challengeRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]model.Challenge, 0, len(rows))
	for _, r := range rows {
		c, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) ListChallenges(ctx context.Context) ([]model.Challenge, error) {
	defer observe(driverSQLite, "list_challenges", time.Now())
	return s.scanChallenges(ctx, `SELECT `+challengeColumns+` FROM challenges
		ORDER BY challenge_date = '', challenge_date, created_at, id`)
}

func (s *SQLiteStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	defer observe(driverSQLite, "get_challenge", time.Now())
	var r challengeRow
	err := s.db.GetContext(ctx, &r, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", id, err)
	}
	c, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ChallengeForDate(ctx context.Context, date string) (*model.Challenge, error) {
	defer observe(driverSQLite, "challenge_for_date", time.Now())
	out, err := s.scanChallenges(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE challenge_date = ? ORDER BY created_at, id LIMIT 1`, date)
	if err != nil {
		return nil, fmt.Errorf("challenge for %s: %w", date, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *SQLiteStore) CreateChallenge(ctx context.Context, c *model.Challenge) error {
	defer observe(driverSQLite, "create_challenge", time.Now())
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	pool, err := json.Marshal(c.Pool)
	if err != nil {
		return fmt.Errorf("encode players_pool: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Rule, c.PickLimit, string(pool), c.ChallengeDate, c.CreatedAt.UTC().Format(timeLayout))
	if constraintKind(err) == "unique" {
		return ErrChallengeExists
	}
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearChallenges(ctx context.Context) (int, error) {
	defer observe(driverSQLite, "clear_challenges", time.Now())
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM challenge_attempts`); err != nil {
		return 0, fmt.Errorf("delete attempts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM challenges`)
	if err != nil {
		return 0, fmt.Errorf("delete challenges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}

const attemptColumns = `id, user_id, challenge_id, score, picks, created_at`

func (s *SQLiteStore) InsertAttempt(ctx context.Context, a *model.Attempt) error {
	defer observe(driverSQLite, "insert_attempt", time.Now())
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	picks, err := json.Marshal(a.Picks)
	if err != nil {
		return fmt.Errorf("encode picks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO challenge_attempts (`+attemptColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.ChallengeID, a.Score, string(picks), a.CreatedAt.UTC().Format(timeLayout))
	switch constraintKind(err) {
	case "unique":
		return ErrAttemptExists
	case "foreign_key":
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanAttempts(ctx context.Context, query string, args ...any) ([]model.Attempt, error) {
	var rows []attemptRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]model.Attempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *SQLiteStore) GetAttempt(ctx context.Context, userID, challengeID string) (*model.Attempt, error) {
	defer observe(driverSQLite, "get_attempt", time.Now())
	out, err := s.scanAttempts(ctx, `SELECT `+attemptColumns+` FROM challenge_attempts
		WHERE user_id = ? AND challenge_id = ?`, userID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *SQLiteStore) ListAttemptsByChallenge(ctx context.Context, challengeID string) ([]model.Attempt, error) {
	defer observe(driverSQLite, "list_attempts_by_challenge", time.Now())
	return s.scanAttempts(ctx, `SELECT `+attemptColumns+` FROM challenge_attempts
		WHERE challenge_id = ? ORDER BY created_at, id`, challengeID)
}

func (s *SQLiteStore) ListAttemptsByUser(ctx context.Context, userID string) ([]model.Attempt, error) {
	defer observe(driverSQLite, "list_attempts_by_user", time.Now())
	return s.scanAttempts(ctx, `SELECT `+attemptColumns+` FROM challenge_attempts
		WHERE user_id = ? ORDER BY created_at, id`, userID)
}

func (s *SQLiteStore) ListAllAttempts(ctx context.Context) ([]model.Attempt, error) {
	defer observe(driverSQLite, "list_all_attempts", time.Now())
	return s.scanAttempts(ctx, `SELECT `+attemptColumns+` FROM challenge_attempts ORDER BY created_at, id`)
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p model.Profile) error {
	defer observe(driverSQLite, "upsert_profile", time.Now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles (user_id, username) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET username = excluded.username`, p.UserID, p.Username)
	if constraintKind(err) == "unique" {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	defer observe(driverSQLite, "usernames", time.Now())
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT user_id, username FROM profiles WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UserID   string `db:"user_id"`
		Username string `db:"username"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("usernames: %w", err)
	}
	for _, p := range rows {
		out[p.UserID] = p.Username
	}
	return out, nil
}
