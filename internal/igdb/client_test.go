package igdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		q := r.URL.Query()
		if q.Get("client_id") != "id" || q.Get("client_secret") != "secret" {
			http.Error(w, `{"message":"invalid client"}`, http.StatusBadRequest)
			return
		}
		assert.Equal(t, "client_credentials", q.Get("grant_type"))
		w.Write([]byte(`{"access_token":"tok","expires_in":5000,"token_type":"bearer"}`))
	})
	mux.HandleFunc("/v4/games", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("Client-ID") != "id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "search \"Outer \\\"Wilds\\\"\";\nfields name, id, release_dates.y, url;", string(body))
		w.Write([]byte(`[
			{"id": 11737, "name": "Outer Wilds", "url": "https://www.igdb.com/games/outer-wilds", "release_dates": [{"id": 1, "y": 2020}, {"id": 2, "y": 2019}]},
			{"id": 99, "name": "Outer Wilds: Echoes", "url": "https://www.igdb.com/games/echoes"}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, id, secret string) *Client {
	return NewClient(id, secret,
		WithEndpoints(srv.URL+"/oauth2/token", srv.URL+"/v4/games"),
		WithHTTPClient(srv.Client()),
	)
}

func TestToken(t *testing.T) {
	srv := newTestServer(t)

	tok, err := newTestClient(srv, "id", "secret").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	_, err = newTestClient(srv, "id", "wrong").Token(context.Background())
	assert.ErrorIs(t, err, ErrProxy)
	assert.Contains(t, err.Error(), "status 400")
}

func TestTokenMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, "id", "secret").Token(context.Background())
	assert.ErrorIs(t, err, ErrProxy)
}

func TestFindGames(t *testing.T) {
	srv := newTestServer(t)

	games, err := newTestClient(srv, "id", "secret").FindGames(context.Background(), "tok", `Outer "Wilds"`)
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, int64(11737), games[0].ID)
	assert.Equal(t, "Outer Wilds", games[0].Title)
	require.NotNil(t, games[0].Year)
	assert.Equal(t, 2019, *games[0].Year)
	assert.Nil(t, games[1].Year)
}

func TestFindGamesUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	_, err := newTestClient(srv, "id", "secret").FindGames(context.Background(), "stale", "x")
	assert.ErrorIs(t, err, ErrProxy)
}

func TestFindGamesUnreachable(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv, "id", "secret")
	srv.Close()

	_, err := c.FindGames(context.Background(), "tok", "x")
	assert.ErrorIs(t, err, ErrProxy)
}
