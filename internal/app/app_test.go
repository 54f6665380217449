package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/John-Robertt/moviefinder/internal/config"
	"github.com/John-Robertt/moviefinder/internal/details"
	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/favorites"
	"github.com/John-Robertt/moviefinder/internal/infra/slot"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/provider"
	"github.com/John-Robertt/moviefinder/internal/provider/rottentomatoes"
	"github.com/John-Robertt/moviefinder/internal/session"
)

func TestMain(m *testing.M) {
	logx.Configure(logx.Config{Output: io.Discard, Level: "error"})
	os.Exit(m.Run())
}

func ignoreHTTPKeepAlive() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreCurrent(),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	}
}

type fakeProvider struct {
	mu      sync.Mutex
	queries []string
	failing map[string]bool
	lookup  func(id string) (domain.Movie, error)
}

func (*fakeProvider) Name() string        { return "fake" }
func (*fakeProvider) HasCredential() bool { return true }

func (p *fakeProvider) Search(_ context.Context, term string, page int) (provider.SearchPage, error) {
	p.mu.Lock()
	p.queries = append(p.queries, term)
	fail := p.failing[term]
	p.mu.Unlock()
	if fail {
		return provider.SearchPage{}, &provider.HTTPStatusError{URL: "https://omdb.test", StatusCode: http.StatusServiceUnavailable}
	}
	return provider.SearchPage{
		Movies: []domain.Movie{{ID: "tt1", Title: "Heat", Year: "1995", Poster: domain.NotAvailable}},
		Total:  1,
	}, nil
}

func (p *fakeProvider) Lookup(_ context.Context, id string) (domain.Movie, error) {
	if p.lookup == nil {
		return domain.Movie{}, &provider.RemoteError{Message: "Incorrect IMDb ID."}
	}
	return p.lookup(id)
}

type fakeScores struct {
	s   rottentomatoes.Scores
	err error
}

func (f fakeScores) Scores(context.Context, string, string) (rottentomatoes.Scores, error) {
	return f.s, f.err
}

type recordingObserver struct {
	mu      sync.Mutex
	starts  int
	started []string
	done    []session.State
	details []bool
}

func (o *recordingObserver) OnSearchStart(term string, page int) {
	o.mu.Lock()
	o.starts++
	o.started = append(o.started, fmt.Sprintf("%s#%d", term, page))
	o.mu.Unlock()
}

func (o *recordingObserver) OnSearchDone(st session.State, _ time.Duration) {
	o.mu.Lock()
	o.done = append(o.done, st)
	o.mu.Unlock()
}

func (o *recordingObserver) OnDetailsDone(_ string, full bool, _ time.Duration) {
	o.mu.Lock()
	o.details = append(o.details, full)
	o.mu.Unlock()
}

func newTestApp(t *testing.T, p provider.Provider, scores ScoreSource, obs Observer) *App {
	t.Helper()
	s, err := slot.Bind(slot.NewMemory(), favorites.SlotKey)
	require.NoError(t, err)
	return New(Deps{
		Session:   session.New(p, zerolog.Nop()),
		Favorites: favorites.Open(context.Background(), s, zerolog.Nop()),
		Details:   details.New(p, zerolog.Nop()),
		Scores:    scores,
		Observer:  obs,
		Logger:    zerolog.Nop(),
	})
}

func TestSearch_ComposesGenresAndNotifies(t *testing.T) {
	p := &fakeProvider{}
	obs := &recordingObserver{}
	a := newTestApp(t, p, nil, obs)

	st := a.Search(context.Background(), " heat ", []string{"Crime", "Drama"})
	require.Equal(t, session.StatusReady, st.Status)
	require.Equal(t, []string{"heat Crime Drama"}, p.queries)
	require.Equal(t, 1, obs.starts)
	require.Len(t, obs.done, 1)
}

func TestRetry_ReportsRetriedTerm(t *testing.T) {
	p := &fakeProvider{failing: map[string]bool{"bad": true}}
	obs := &recordingObserver{}
	a := newTestApp(t, p, nil, obs)

	require.Equal(t, session.StatusReady, a.Search(context.Background(), "heat", nil).Status)
	st := a.Search(context.Background(), "bad", nil)
	require.Equal(t, session.StatusError, st.Status)
	require.Equal(t, "heat", st.Term, "失败的新搜索不改变 term")

	st = a.Retry(context.Background())
	require.Equal(t, session.StatusError, st.Status)
	require.Equal(t, []string{"heat#1", "bad#1", "bad#1"}, obs.started)
	require.Equal(t, []string{"heat", "bad", "bad"}, p.queries)
}

func TestOpenDetails_FallbackWithPlaceholderPoster(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := &fakeProvider{}
	obs := &recordingObserver{}
	a := newTestApp(t, p, fakeScores{err: errors.New("blocked")}, obs)

	partial := domain.Movie{ID: "tt1", Title: "Heat", Year: "1995", Poster: domain.NotAvailable}
	a.Toggle(partial)

	v := a.OpenDetails(context.Background(), partial)
	require.False(t, v.Full)
	require.Equal(t, partial, v.Movie, "详情失败时应展示已有的部分记录")
	require.Equal(t, domain.PosterPlaceholder, v.Poster)
	require.True(t, v.Favorite)
	require.Nil(t, v.Scores)
	require.Equal(t, []bool{false}, obs.details)
}

func TestOpenDetails_FullWithScores(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := &fakeProvider{lookup: func(id string) (domain.Movie, error) {
		return domain.Movie{ID: id, Title: "Heat", Plot: "A group of professional bank robbers...", Poster: "https://img/heat.jpg"}, nil
	}}
	a := newTestApp(t, p, fakeScores{s: rottentomatoes.Scores{Critic: "83", Audience: "94"}}, nil)

	v := a.OpenDetails(context.Background(), domain.Movie{ID: "tt1", Title: "Heat", Year: "1995"})
	require.True(t, v.Full)
	require.Equal(t, "https://img/heat.jpg", v.Poster)
	require.NotNil(t, v.Scores)
	require.Equal(t, "83", v.Scores.Critic)
	require.False(t, v.Favorite)
}

func TestLookup_ResultsThenFavorites(t *testing.T) {
	a := newTestApp(t, &fakeProvider{}, nil, nil)
	a.Toggle(domain.Movie{ID: "tt9", Title: "Fav"})
	a.Search(context.Background(), "heat", nil)

	m, ok := a.Lookup("tt1")
	require.True(t, ok)
	require.Equal(t, "Heat", m.Title)

	m, ok = a.Lookup("tt9")
	require.True(t, ok)
	require.Equal(t, "Fav", m.Title)

	_, ok = a.Lookup("tt404")
	require.False(t, ok)
}

func TestBuild_EndToEndAgainstFakeOMDb(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreHTTPKeepAlive()...)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("s") != "":
			_, _ = w.Write([]byte(`{"Search":[{"Title":"Heat","Year":"1995","imdbID":"tt0113277","Type":"movie","Poster":"N/A"}],"totalResults":"1","Response":"True"}`))
		case q.Get("i") != "":
			_, _ = w.Write([]byte(`{"Title":"Heat","Year":"1995","imdbID":"tt0113277","Type":"movie","Poster":"N/A","Director":"Michael Mann","Response":"True"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	eff := config.EffectiveConfig{
		APIKey:           "k",
		BaseURL:          srv.URL,
		Timeout:          2 * time.Second,
		FavoritesBackend: slot.BackendFile,
		FavoritesDir:     t.TempDir(),
	}
	a, closeFn, err := Build(context.Background(), eff, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	st := a.Search(context.Background(), "heat", nil)
	require.Equal(t, session.StatusReady, st.Status, st.Error)
	require.Len(t, st.Results, 1)

	v := a.OpenDetails(context.Background(), st.Results[0])
	require.True(t, v.Full)
	require.Equal(t, "Michael Mann", v.Movie.Director)

	require.True(t, a.Toggle(v.Movie))

	// 重新装配：收藏应从文件槽位恢复。
	b, closeB, err := Build(context.Background(), eff, nil)
	require.NoError(t, err)
	defer func() { _ = closeB() }()
	require.True(t, b.IsFavorite("tt0113277"))
	require.Equal(t, 1, b.FavoritesCount())
}

func TestBuild_MissingAPIKeyDegrades(t *testing.T) {
	eff := config.EffectiveConfig{FavoritesBackend: slot.BackendMemory}
	a, closeFn, err := Build(context.Background(), eff, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	st := a.Search(context.Background(), "heat", nil)
	require.Equal(t, session.StatusError, st.Status)
	require.Equal(t, session.ErrMsgMissingCredential, st.Error)
}

func TestBuild_LogsSlotBackend(t *testing.T) {
	var buf bytes.Buffer
	logx.Reset()
	logx.Configure(logx.Config{Output: &buf, Level: "debug"})
	t.Cleanup(func() {
		logx.Reset()
		logx.Configure(logx.Config{Output: io.Discard, Level: "error"})
	})

	_, closeFn, err := Build(context.Background(), config.EffectiveConfig{FavoritesBackend: slot.BackendMemory}, nil)
	require.NoError(t, err)
	require.NoError(t, closeFn())

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "favorites backend opened") {
			line = l
		}
	}
	require.NotEmpty(t, line, "装配时应记录收藏后端")
	require.Contains(t, line, `"component":"slot"`)
	require.Contains(t, line, `"backend":"memory"`)
}
