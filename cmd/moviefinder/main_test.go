package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/moviefinder/internal/app"
	"github.com/John-Robertt/moviefinder/internal/config"
	"github.com/John-Robertt/moviefinder/internal/domain"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/nfo"
	"github.com/John-Robertt/moviefinder/internal/session"
)

func TestMain(m *testing.M) {
	logx.Configure(logx.Config{Output: io.Discard, Level: "error"})
	os.Exit(m.Run())
}

type fakeOMDb struct {
	srv       *httptest.Server
	calls     atomic.Int32
	lastTerm  atomic.Value
	searchHit bool
}

func newFakeOMDb(t *testing.T) *fakeOMDb {
	t.Helper()
	f := &fakeOMDb{searchHit: true}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/poster.png" {
			w.Header().Set("Content-Type", "image/png")
			_ = png.Encode(w, image.NewRGBA(image.Rect(0, 0, 20, 30)))
			return
		}
		f.calls.Add(1)
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		if q.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"Response":"False","Error":"Invalid API key!"}`)
			return
		}
		if s := q.Get("s"); s != "" {
			f.lastTerm.Store(s)
			if !f.searchHit {
				_, _ = io.WriteString(w, `{"Response":"False","Error":"Movie not found!"}`)
				return
			}
			_, _ = io.WriteString(w, `{"Search":[
				{"Title":"The Matrix","Year":"1999","imdbID":"tt0133093","Type":"movie","Poster":"https://img/m.jpg"},
				{"Title":"The Matrix Reloaded","Year":"2003","imdbID":"tt0234215","Type":"movie","Poster":"N/A"}
			],"totalResults":"2","Response":"True"}`)
			return
		}
		if q.Get("i") == "tt0133093" {
			_, _ = io.WriteString(w, `{"Poster":"http://`+r.Host+`/poster.png","Title":"The Matrix","Year":"1999","Rated":"R","Released":"31 Mar 1999",
				"Runtime":"136 min","Genre":"Action, Sci-Fi","Director":"Lana Wachowski, Lilly Wachowski",
				"Actors":"Keanu Reeves, Laurence Fishburne","Plot":"A computer hacker learns the truth.",
				"imdbRating":"8.7","imdbID":"tt0133093","Type":"movie","Response":"True"}`)
			return
		}
		_, _ = io.WriteString(w, `{"Response":"False","Error":"Incorrect IMDb ID."}`)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOMDb) term() string {
	s, _ := f.lastTerm.Load().(string)
	return s
}

type harness struct {
	c       *cli
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	dataDir string
}

// newHarness 准备隔离的 cwd/环境变量与一个指向 fake OMDb 的配置文件。
func newHarness(t *testing.T, omdb *fakeOMDb, apiKey string) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvFavorites, "")

	cwd := t.TempDir()
	data := filepath.Join(t.TempDir(), "data")
	cfg := map[string]any{
		"base_url":  omdb.srv.URL,
		"favorites": map[string]any{"backend": "file", "path": data},
	}
	if apiKey != "" {
		cfg["api_key"] = apiKey
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cwd, "moviefinder.json"), b, 0o644))

	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, dataDir: data}
	h.c = &cli{stdout: h.stdout, stderr: h.stderr, cwd: cwd}
	return h
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	return h.c.run(context.Background(), args)
}

func TestCLI_SearchNoTTY_StdoutOnlyStateJSON(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	code := h.run("search", "matrix", "--genre", "Sci-Fi")
	require.Equal(t, 0, code, "stderr=%s", h.stderr.String())

	var st session.State
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &st), "stdout=%q", h.stdout.String())
	require.Equal(t, session.StatusReady, st.Status)
	require.Len(t, st.Results, 2)
	require.Equal(t, 2, st.Total)
	require.False(t, st.CanLoadMore)
	require.Equal(t, "matrix Sci-Fi", omdb.term())

	require.Contains(t, h.stderr.String(), "显示 2 / 2 条")
	require.NotContains(t, h.stdout.String(), "配置（生效）")
}

func TestCLI_SearchTTY_HumanReadable(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")
	h.c.stdoutTTY = true

	require.Equal(t, 0, h.run("search", "matrix"))
	out := h.stdout.String()
	require.Contains(t, out, "The Matrix (1999) [tt0133093]")
	require.Contains(t, out, "显示 2 / 2 条：matrix")
}

func TestCLI_SearchNoResultsIsError(t *testing.T) {
	omdb := newFakeOMDb(t)
	omdb.searchHit = false
	h := newHarness(t, omdb, "test-key")

	require.Equal(t, 1, h.run("search", "zzzz"))
	var st session.State
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &st))
	require.Equal(t, session.StatusError, st.Status)
	require.True(t, st.CanRetry)
}

func TestCLI_EmptyTermMakesNoRequest(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	require.Equal(t, 1, h.run("search"))
	var st session.State
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &st))
	require.Equal(t, session.ErrMsgEmptyTerm, st.Error)
	require.Zero(t, omdb.calls.Load())
}

func TestCLI_MissingAPIKeyDegrades(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "")

	require.Equal(t, 1, h.run("search", "matrix"))
	var st session.State
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &st))
	require.Equal(t, session.ErrMsgMissingCredential, st.Error)
	require.Zero(t, omdb.calls.Load())
	require.Contains(t, h.stderr.String(), "提示：")

	// --api-key 优先于配置文件。
	require.Equal(t, 0, h.run("--api-key", "test-key", "search", "matrix"))
}

func TestCLI_DetailsFullAndNotFound(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	require.Equal(t, 0, h.run("details", "tt0133093"))
	var v app.DetailView
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &v))
	require.True(t, v.Full)
	require.Equal(t, "8.7", v.Movie.Rating)

	require.Equal(t, 1, h.run("details", "tt0000000"))
	var e errorDoc
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &e))
	require.Equal(t, "not_found", e.Error)
}

func TestCLI_FavoritesLifecycleAndExport(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	require.Equal(t, 0, h.run("fav", "add", "tt0133093"), "stderr=%s", h.stderr.String())
	var r favoriteResult
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &r))
	require.Equal(t, favoriteResult{ID: "tt0133093", Favorite: true, Count: 1}, r)

	// 重复 add 不改变状态。
	require.Equal(t, 0, h.run("fav", "add", "tt0133093"))
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &r))
	require.Equal(t, 1, r.Count)

	// 新进程读到同一个槽位。
	require.Equal(t, 0, h.run("fav", "list"))
	var favs []domain.Movie
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &favs))
	require.Len(t, favs, 1)
	require.Equal(t, "Action, Sci-Fi", favs[0].Genre)

	require.Equal(t, 0, h.run("fav", "list", "--genre", "Drama"))
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &favs))
	require.Empty(t, favs)
	require.Equal(t, 0, h.run("fav", "list", "--genre=sci-fi"))
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &favs))
	require.Len(t, favs, 1)

	out := t.TempDir()
	require.Equal(t, 0, h.run("fav", "export", out))
	var res nfo.ExportResult
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &res))
	require.Len(t, res.Written, 1)
	b, err := os.ReadFile(filepath.Join(out, "tt0133093", nfo.FileName))
	require.NoError(t, err)
	require.Contains(t, string(b), "<title>The Matrix</title>")

	require.Equal(t, 0, h.run("fav", "export", out, "--posters"))
	var doc exportDoc
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &doc))
	require.Len(t, doc.Skipped, 1)
	require.NotNil(t, doc.Posters)
	require.Len(t, doc.Posters.Written, 1, "failed=%v", doc.Posters.Failed)
	_, err = os.Stat(filepath.Join(out, "tt0133093", nfo.PosterFileName))
	require.NoError(t, err)

	require.Equal(t, 0, h.run("fav", "toggle", "tt0133093"))
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &r))
	require.False(t, r.Favorite)
	require.Zero(t, r.Count)

	// 查不到完整记录时不收藏。
	require.Equal(t, 1, h.run("fav", "add", "tt0000000"))

	require.Equal(t, 0, h.run("fav", "clear"))
	_, err = os.Stat(filepath.Join(h.dataDir, "movieFinder_favorites.json"))
	require.NoError(t, err)
}

func TestCLI_ConfigNotFound(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	require.Equal(t, 1, h.run("--config", "missing.yaml", "fav", "list"))
	var e errorDoc
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &e))
	require.Equal(t, "config_not_found", e.Error)
}

func TestCLI_UsageErrors(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	cases := [][]string{
		{"bogus"},
		{"search", "matrix", "--page", "0"},
		{"search", "matrix", "--page"},
		{"search", "--unknown"},
		{"details"},
		{"details", "a", "b"},
		{"fav"},
		{"fav", "add"},
		{"fav", "list", "extra"},
		{"fav", "nope"},
		{"fav", "export"},
		{"serve", "--port", "1"},
		{"tui", "x"},
		{"--config"},
	}
	for _, args := range cases {
		require.Equal(t, 2, h.run(args...), "args=%v", args)
	}
	require.Zero(t, omdb.calls.Load())
}

func TestCLI_HelpExitsZero(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	require.Equal(t, 0, h.run())
	require.Contains(t, h.stdout.String(), "用法：")
	require.Equal(t, 0, h.run("search", "--help"))
	require.Contains(t, h.stdout.String(), "--genre")
}

func TestCLI_TUIRequiresTerminal(t *testing.T) {
	omdb := newFakeOMDb(t)
	h := newHarness(t, omdb, "test-key")

	require.Equal(t, 2, h.run("tui"))

	called := false
	h.c.stdoutTTY = true
	h.c.tui = func(_ context.Context, a *app.App, eff config.EffectiveConfig) error {
		called = true
		require.NotNil(t, a)
		require.Equal(t, "test-key", eff.APIKey)
		return nil
	}
	require.Equal(t, 0, h.run("tui"))
	require.True(t, called)
	_, err := os.Stat(filepath.Join(h.dataDir, "moviefinder.log"))
	require.NoError(t, err)
}

func TestParseGlobalArgs(t *testing.T) {
	g, rest, err := parseGlobalArgs([]string{"search", "--api-key", "k", "matrix", "--config=c.yaml", "--page", "2"})
	require.NoError(t, err)
	require.Equal(t, globalArgs{ConfigPath: "c.yaml", APIKey: "k"}, g)
	require.Equal(t, []string{"search", "matrix", "--page", "2"}, rest)

	_, _, err = parseGlobalArgs([]string{"--log-level="})
	require.Error(t, err)
}

func TestEmitState_TTYHintsNextPage(t *testing.T) {
	var out, errw bytes.Buffer
	c := &cli{stdout: &out, stderr: &errw, stdoutTTY: true}
	c.emitState(session.State{
		Term: "matrix", Page: 1, Total: 25, Status: session.StatusReady, CanLoadMore: true,
		Results: []domain.Movie{{ID: "tt1", Title: "A", Year: "2000"}},
	})
	require.True(t, strings.Contains(out.String(), "--page 2"), out.String())
}
