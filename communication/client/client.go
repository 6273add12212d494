// Package client talks to the HTTP play API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"guesser/communication"
	"guesser/engine"
	"guesser/failure"
	"guesser/game"
)

// StatusError is a non-2xx response. It unwraps to a *failure.Error when the server reported
// one of the failure kinds, so failure.Is works across the wire.
type StatusError struct {
	Code    int
	Kind    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch kind := failure.Kind(e.Kind); kind {
	case failure.KindStorage, failure.KindInvalidAnswer, failure.KindConfiguration:
		return &failure.Error{Kind: kind, Message: e.Message}
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL. A nil httpClient means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Themes(ctx context.Context) ([]string, error) {
	var resp communication.ThemesResponse
	if err := c.do(ctx, http.MethodGet, "/themes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Themes, nil
}

// Create starts a game. An empty version selects the latest one.
func (c *Client) Create(ctx context.Context, theme, version string) (communication.GameView, error) {
	var view communication.GameView
	req := communication.CreateGameRequest{Theme: theme, Version: version}
	err := c.do(ctx, http.MethodPost, "/games", req, &view)
	return view, err
}

func (c *Client) Get(ctx context.Context, id string) (communication.GameView, error) {
	var view communication.GameView
	err := c.do(ctx, http.MethodGet, "/games/"+id, nil, &view)
	return view, err
}

// Answer sends an answer label, see game.AnswerLabels.
func (c *Client) Answer(ctx context.Context, id, label string) (communication.GameView, error) {
	var view communication.GameView
	err := c.do(ctx, http.MethodPost, "/games/"+id+"/answer", communication.AnswerRequest{Answer: label}, &view)
	return view, err
}

func (c *Client) Verdict(ctx context.Context, id string, right bool) (communication.GameView, error) {
	var view communication.GameView
	err := c.do(ctx, http.MethodPost, "/games/"+id+"/verdict", communication.VerdictRequest{Right: right}, &view)
	return view, err
}

func (c *Client) Undo(ctx context.Context, id string) (communication.GameView, error) {
	var view communication.GameView
	err := c.do(ctx, http.MethodPost, "/games/"+id+"/undo", nil, &view)
	return view, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/games/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr communication.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &StatusError{Code: resp.StatusCode, Kind: apiErr.Kind, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Game drives one remote game through the engine.Driver interface.
type Game struct {
	client  *Client
	theme   string
	version string
	id      string
}

var _ engine.Driver = (*Game)(nil)

func (c *Client) NewGame(theme, version string) *Game {
	return &Game{client: c, theme: theme, version: version}
}

// ID is the server's game id, empty until Start.
func (g *Game) ID() string {
	return g.id
}

func (g *Game) Start(ctx context.Context) (engine.Prompt, error) {
	view, err := g.client.Create(ctx, g.theme, g.version)
	if err != nil {
		return engine.Prompt{}, err
	}
	g.id = view.ID
	return view.Prompt, nil
}

func (g *Game) Answer(ctx context.Context, value float64) (engine.Prompt, error) {
	label := game.AnswerLabel(value)
	if label == "" {
		return engine.Prompt{}, failure.InvalidAnswer(value)
	}
	view, err := g.client.Answer(ctx, g.id, label)
	return view.Prompt, err
}

func (g *Game) Verdict(ctx context.Context, right bool) (engine.Prompt, error) {
	view, err := g.client.Verdict(ctx, g.id, right)
	return view.Prompt, err
}

func (g *Game) Undo(ctx context.Context) (engine.Prompt, error) {
	view, err := g.client.Undo(ctx, g.id)
	return view.Prompt, err
}

// Close deletes the game on the server.
func (g *Game) Close(ctx context.Context) error {
	if g.id == "" {
		return nil
	}
	return g.client.Delete(ctx, g.id)
}
