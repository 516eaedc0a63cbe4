// Package igdb proxies game metadata lookups to IGDB, authenticating with
// Twitch client credentials.
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	DefaultGamesURL = "https://api.igdb.com/v4/games"
)

// ErrProxy is returned when an upstream request fails or answers with
// something other than a usable result.
var ErrProxy = errors.New("igdb proxy request failed")

// Candidate is a game returned by a search.
type Candidate struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Year  *int   `json:"year,omitempty"`
	URL   string `json:"url"`
}

type apiGame struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ReleaseDates []struct {
		Y int `json:"y"`
	} `json:"release_dates"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Client talks to the Twitch token endpoint and the IGDB games endpoint.
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	gamesURL     string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the token and games URLs.
func WithEndpoints(tokenURL, gamesURL string) Option {
	return func(c *Client) {
		c.tokenURL = tokenURL
		c.gamesURL = gamesURL
	}
}

// WithHTTPClient sets the HTTP client used for upstream requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient returns a client for the Twitch application clientID. Options
// override the endpoints and the HTTP client.
func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     DefaultTokenURL,
		gamesURL:     DefaultGamesURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token obtains an app access token with the client-credentials grant.
func (c *Client) Token(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("client_secret", c.clientSecret)
	q.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}

	var tr tokenResponse
	if err := c.do(req, &tr); err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("requesting token: %w: no access_token in response", ErrProxy)
	}
	return tr.AccessToken, nil
}

// FindGames searches IGDB for term using an access token from Token.
func (c *Client) FindGames(ctx context.Context, token, term string) ([]Candidate, error) {
	body := searchQuery(term)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gamesURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	var games []apiGame
	if err := c.do(req, &games); err != nil {
		return nil, fmt.Errorf("searching %q: %w", term, err)
	}

	out := make([]Candidate, 0, len(games))
	for _, g := range games {
		out = append(out, convertGame(g))
	}
	return out, nil
}

// searchQuery builds the apicalypse body for a name search.
func searchQuery(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `"`, `\"`)
	return fmt.Sprintf("search \"%s\";\nfields name, id, release_dates.y, url;", term)
}

// convertGame keeps the earliest release year.
func convertGame(g apiGame) Candidate {
	c := Candidate{ID: g.ID, Title: g.Name, URL: g.URL}
	for _, rd := range g.ReleaseDates {
		if rd.Y == 0 {
			continue
		}
		if c.Year == nil || rd.Y < *c.Year {
			y := rd.Y
			c.Year = &y
		}
	}
	return c
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProxy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrProxy, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrProxy, err)
	}
	return nil
}
