package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/dugout/internal/adapters/http/api"
	"github.com/okian/dugout/internal/domain/standings"
	"github.com/okian/dugout/internal/domain/types"
)

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeAccepted
	outcomeDuplicate
)

// Client talks to the public API as many users.
type Client struct {
	http    *http.Client
	baseURL string
	secret  []byte
}

// NewClient creates a client for cfg.
func NewClient(cfg *Config) *Client {
	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
	}
	if cfg.Secret != "" {
		c.secret = []byte(cfg.Secret)
	}
	return c
}

// authorize identifies the request as userID, with a signed token when a
// secret is configured.
func (c *Client) authorize(req *http.Request, userID string) error {
	if c.secret == nil {
		req.Header.Set(api.UserIDHeader, userID)
		return nil
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(c.secret)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (c *Client) do(req *http.Request, want int, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	if err := c.do(req, http.StatusOK, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// Challenge fetches challenge id, or today's when id is empty.
func (c *Client) Challenge(ctx context.Context, id string) (types.ChallengeDetail, error) {
	path := "/challenges/today"
	if id != "" {
		path = "/challenges/" + url.PathEscape(id)
	}
	var d types.ChallengeDetail
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return d, err
	}
	err = c.do(req, http.StatusOK, &d)
	return d, err
}

// Leaderboard fetches the standings of challenge id.
func (c *Client) Leaderboard(ctx context.Context, id string) ([]standings.ChallengeStanding, error) {
	var rows []standings.ChallengeStanding
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/challenges/"+url.PathEscape(id)+"/leaderboard", nil)
	if err != nil {
		return nil, err
	}
	err = c.do(req, http.StatusOK, &rows)
	return rows, err
}

// submit posts one attempt. 201 is accepted and 409 a duplicate.
func (c *Client) submit(ctx context.Context, challengeID string, s Submission) (outcome, error) {
	body, err := json.Marshal(map[string][]string{"player_ids": s.PlayerIDs})
	if err != nil {
		return outcomeFailed, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/challenges/"+url.PathEscape(challengeID)+"/attempts", bytes.NewReader(body))
	if err != nil {
		return outcomeFailed, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req, s.UserID); err != nil {
		return outcomeFailed, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return outcomeFailed, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		return outcomeAccepted, nil
	case http.StatusConflict:
		return outcomeDuplicate, nil
	default:
		return outcomeFailed, fmt.Errorf("submit %s: status %d", s.UserID, resp.StatusCode)
	}
}
