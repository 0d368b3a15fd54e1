package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/icco/minesduel/match"
)

// client talks to a minesduel server.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e apiError
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, e.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) state(ctx context.Context, id int64) (*match.MatchState, error) {
	var st match.MatchState
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/match/%d/state", id), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *client) setReady(ctx context.Context, id int64, token string, ready bool) (*match.ReadyState, error) {
	req := struct {
		Token string `json:"player_token"`
		Ready bool   `json:"ready"`
	}{token, ready}

	var st match.ReadyState
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/match/%d/ready", id), req, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
