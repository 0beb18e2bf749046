package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/xpboard/internal/adapters/http/api"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/types"
)

const tokenTTL = time.Hour

// client talks to one xpboard instance.
type client struct {
	http    *http.Client
	baseURL string
	token   string
}

func newClient(cfg *Config) (*client, error) {
	token, err := api.IssueAdminToken([]byte(cfg.Secret), "replay", tokenTTL)
	if err != nil {
		return nil, err
	}
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		token:   token,
	}, nil
}

type ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// postEvent submits e to the admin ingest route and returns the disposition
// reported by the server.
func (c *client) postEvent(ctx context.Context, e model.GatewayEvent) (string, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/events", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	var a ack
	if err := c.do(req, &a, http.StatusAccepted, http.StatusOK); err != nil {
		return "", err
	}
	return a.Status, nil
}

func (c *client) healthy(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

func (c *client) leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	var out []types.Entry
	err := c.get(ctx, fmt.Sprintf("/leaderboard?limit=%d", n), &out)
	return out, err
}

func (c *client) rank(ctx context.Context, userID string) (types.RankView, error) {
	var out types.RankView
	err := c.get(ctx, "/rank/"+userID, &out)
	return out, err
}

func (c *client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out, http.StatusOK)
}

// do sends req and decodes a JSON body into out when the status is one of ok.
func (c *client) do(req *http.Request, out any, ok ...int) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	accepted := false
	for _, code := range ok {
		if resp.StatusCode == code {
			accepted = true
			break
		}
	}
	if !accepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: HTTP %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
