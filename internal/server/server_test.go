package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cdtdelta/backlog/internal/catalog"
	"github.com/cdtdelta/backlog/internal/igdb"
	"github.com/cdtdelta/backlog/internal/model"
)

const testAdminToken = "s3cret"

type staticSource struct {
	games []*model.Game
	err   error
}

func (s staticSource) ListGames(ctx context.Context) ([]*model.Game, error) {
	return s.games, s.err
}

type fakeFinder struct {
	token    string
	err      error
	gotToken string
	gotTerm  string
}

func (f *fakeFinder) Token(ctx context.Context) (string, error) {
	return f.token, f.err
}

func (f *fakeFinder) FindGames(ctx context.Context, token, term string) ([]igdb.Candidate, error) {
	f.gotToken, f.gotTerm = token, term
	if f.err != nil {
		return nil, f.err
	}
	return []igdb.Candidate{{ID: 7, Title: "Celeste", Year: model.IntPtr(2018)}}, nil
}

func testGames(n int) []*model.Game {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	games := make([]*model.Game, 0, n+1)
	for i := range n {
		d := start.AddDate(0, 0, i)
		games = append(games, &model.Game{
			ID:           fmt.Sprintf("id-%02d", i+1),
			Title:        fmt.Sprintf("Game %02d", i+1),
			Finished:     "Yes",
			FinishedDate: &d,
			Rating:       model.IntPtr(i%10 + 1),
		})
	}
	games = append(games, &model.Game{ID: "todo", Title: "Unplayed"})
	return games
}

func newTestHandler(t *testing.T, src catalog.Source, finder Finder) http.Handler {
	t.Helper()
	cat := catalog.New(src, time.Minute, zap.NewNop())
	return NewHandlers(cat, finder, testAdminToken, 10, zap.NewNop()).Routes()
}

func do(t *testing.T, h http.Handler, method, target, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestGamesDefaults(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(25)}, nil)

	rec := do(t, h, http.MethodGet, "/api/games", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CacheControl, rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	resp := decode[gamesResponse](t, rec)
	assert.Equal(t, "played", string(resp.View))
	assert.Equal(t, 25, resp.Total)
	assert.Equal(t, 3, resp.PageCount)
	assert.Len(t, resp.Rows, 10)
	assert.Equal(t, "finishedDate", resp.Sort.Field)
	assert.True(t, resp.Sort.Desc)
	assert.Equal(t, "Game 25", resp.Rows[0]["title"])
	assert.False(t, resp.CanPrev)
	assert.True(t, resp.CanNext)

	for _, c := range resp.Columns {
		assert.NotEqual(t, "_id", c.ID, "id column is admin only")
	}
}

func TestGamesQueryState(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(25)}, nil)

	rec := do(t, h, http.MethodGet, "/api/games?sortBy=title&sortDesc=false&title=game+2&page=9&pageSize=30", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[gamesResponse](t, rec)
	assert.Equal(t, "title", resp.Sort.Field)
	assert.False(t, resp.Sort.Desc)
	assert.Equal(t, "game 2", resp.Filter)
	assert.Equal(t, 30, resp.PageSize)
	assert.Equal(t, 0, resp.PageIndex, "page is clamped")
	require.Len(t, resp.Rows, 6)
	assert.Equal(t, "Game 20", resp.Rows[0]["title"])
	assert.Contains(t, resp.Query, "sortBy=title")
	assert.Contains(t, resp.Query, "title=game+2")
}

func TestGamesMalformedParamsFallBack(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(5)}, nil)

	rec := do(t, h, http.MethodGet, "/api/games?sortBy=nope&sortDesc=maybe&pageSize=12", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[gamesResponse](t, rec)
	assert.Equal(t, "finishedDate", resp.Sort.Field)
	assert.True(t, resp.Sort.Desc)
	assert.Equal(t, 10, resp.PageSize)
}

func TestGamesBacklogView(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(3)}, nil)

	rec := do(t, h, http.MethodGet, "/api/games?view=backlog", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[gamesResponse](t, rec)
	assert.Equal(t, "backlog", string(resp.View))
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Unplayed", resp.Rows[0]["title"])
}

func TestGamesUnknownView(t *testing.T) {
	h := newTestHandler(t, staticSource{}, nil)

	rec := do(t, h, http.MethodGet, "/api/games?view=wishlist", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGamesAdminSeesIDColumn(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(3)}, nil)

	rec := do(t, h, http.MethodGet, "/api/games", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[gamesResponse](t, rec)
	var ids []string
	for _, c := range resp.Columns {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "_id")
	assert.Equal(t, "id-03", resp.Rows[0]["_id"])
}

func TestGamesCacheHeadersDependOnAdmin(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(3)}, nil)

	anon := do(t, h, http.MethodGet, "/api/games", "", false)
	require.Equal(t, http.StatusOK, anon.Code)
	assert.Equal(t, CacheControl, anon.Header().Get("Cache-Control"))
	assert.Equal(t, "Authorization", anon.Header().Get("Vary"))

	admin := do(t, h, http.MethodGet, "/api/games", "", true)
	require.Equal(t, http.StatusOK, admin.Code)
	assert.Equal(t, PrivateCacheControl, admin.Header().Get("Cache-Control"))
	assert.Equal(t, "Authorization", admin.Header().Get("Vary"))
	assert.NotContains(t, admin.Header().Get("Cache-Control"), "public")
}

func TestGamesSourceError(t *testing.T) {
	h := newTestHandler(t, staticSource{err: errors.New("db down")}, nil)

	rec := do(t, h, http.MethodGet, "/api/games", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGame(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(3)}, nil)

	rec := do(t, h, http.MethodGet, "/api/games/id-02", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	g := decode[model.Game](t, rec)
	assert.Equal(t, "Game 02", g.Title)

	rec = do(t, h, http.MethodGet, "/api/games/missing", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(4)}, nil)

	rec := do(t, h, http.MethodGet, "/api/stats", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "entries")
	assert.Contains(t, body, "ratingDistribution")
}

func TestStatus(t *testing.T) {
	h := newTestHandler(t, staticSource{games: testGames(4)}, nil)

	rec := do(t, h, http.MethodGet, "/api/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[statusResponse](t, rec)
	assert.Equal(t, 5, resp.Games)
	assert.Equal(t, 4, resp.Played)
	assert.Equal(t, 1, resp.Backlog)
}

func TestAdminGate(t *testing.T) {
	finder := &fakeFinder{token: "tok"}
	h := newTestHandler(t, staticSource{}, finder)

	for _, path := range []string{"/api/igdb/token", "/api/igdb/find-games"} {
		rec := do(t, h, http.MethodPost, path, `{}`, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/igdb/token", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminGateWithoutConfiguredToken(t *testing.T) {
	cat := catalog.New(staticSource{}, time.Minute, zap.NewNop())
	h := NewHandlers(cat, &fakeFinder{}, "", 10, zap.NewNop()).Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/igdb/token", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToken(t *testing.T) {
	h := newTestHandler(t, staticSource{}, &fakeFinder{token: "tok"})

	rec := do(t, h, http.MethodPost, "/api/igdb/token", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"tok"}`, rec.Body.String())
}

func TestTokenError(t *testing.T) {
	h := newTestHandler(t, staticSource{}, &fakeFinder{err: igdb.ErrProxy})

	rec := do(t, h, http.MethodPost, "/api/igdb/token", "", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFindGames(t *testing.T) {
	finder := &fakeFinder{}
	h := newTestHandler(t, staticSource{}, finder)

	rec := do(t, h, http.MethodPost, "/api/igdb/find-games", `{"token":"tok","searchTerm":"celeste"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", finder.gotToken)
	assert.Equal(t, "celeste", finder.gotTerm)

	got := decode[[]igdb.Candidate](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Celeste", got[0].Title)
}

func TestFindGamesError(t *testing.T) {
	upstream := fmt.Errorf("%w: status 401: invalid client secret abc123", igdb.ErrProxy)
	h := newTestHandler(t, staticSource{}, &fakeFinder{err: upstream})

	rec := do(t, h, http.MethodPost, "/api/igdb/find-games", `{"token":"tok","searchTerm":"x"}`, true)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode[map[string]string](t, rec)
	assert.Equal(t, "findGamesError", body["errorType"])
	assert.Equal(t, proxyErrorMessage, body["error"])
	assert.NotContains(t, rec.Body.String(), "abc123")
}

func TestFindGamesBadBody(t *testing.T) {
	h := newTestHandler(t, staticSource{}, &fakeFinder{})

	rec := do(t, h, http.MethodPost, "/api/igdb/find-games", `not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/igdb/find-games", `{"token":"tok"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyNotConfigured(t *testing.T) {
	h := newTestHandler(t, staticSource{}, nil)

	rec := do(t, h, http.MethodPost, "/api/igdb/token", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cat := catalog.New(staticSource{games: testGames(2)}, time.Minute, zap.NewNop())
	srv := New(Config{PageSize: 10}, cat, nil, zap.NewNop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, ln, zap.NewNop()) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
