package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/moviefinder/internal/app"
	"github.com/John-Robertt/moviefinder/internal/config"
	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/session"
)

var (
	primaryColor   = lipgloss.Color("#E50914")
	secondaryColor = lipgloss.Color("#F5F5F1")
	accentColor    = lipgloss.Color("#564D4D")
	goldColor      = lipgloss.Color("#F5C518")

	titleStyle    = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	subtitleStyle = lipgloss.NewStyle().Foreground(secondaryColor).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(secondaryColor)
	dimStyle      = lipgloss.NewStyle().Foreground(accentColor)
	ratingStyle   = lipgloss.NewStyle().Foreground(goldColor).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	bannerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(goldColor).Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1).
			Width(cardWidth)

	selectedCardStyle = cardStyle.BorderForeground(primaryColor)

	heroStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			Width(40)
)

const (
	cardWidth = 26

	// 走马灯最多展示的条数与自动轮转节奏；用户操作后暂停 carouselIdle 再恢复。
	carouselSegments = 24
	carouselInterval = 3 * time.Second
	carouselIdle     = 5 * time.Second
)

type mode int

const (
	modeSearch mode = iota
	modeResults
	modeDetails
	modeGenres
	modeFavorites
)

type layout int

const (
	layoutGrid layout = iota
	layoutCarousel
)

type keyMap struct {
	Up, Down, Left, Right key.Binding
	Open                  key.Binding
	More                  key.Binding
	Favorite              key.Binding
	Layout                key.Binding
	Genres                key.Binding
	Favorites             key.Binding
	Clear                 key.Binding
	ClearFavorites        key.Binding
	Retry                 key.Binding
	Search                key.Binding
	Back                  key.Binding
	Quit                  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:             key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "上")),
		Down:           key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "下")),
		Left:           key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "左")),
		Right:          key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "右")),
		Open:           key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "详情")),
		More:           key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "加载更多")),
		Favorite:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "收藏")),
		Layout:         key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "网格/走马灯")),
		Genres:         key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "类型")),
		Favorites:      key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "收藏夹")),
		Clear:          key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "清空搜索")),
		ClearFavorites: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "清空收藏")),
		Retry:          key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "重试")),
		Search:         key.NewBinding(key.WithKeys("/", "s"), key.WithHelp("/", "搜索框")),
		Back:           key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "返回")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "退出")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.More, k.Favorite, k.Layout, k.Genres, k.Favorites, k.Retry, k.Back, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Open, k.More, k.Favorite, k.Layout},
		{k.Genres, k.Favorites, k.Clear, k.ClearFavorites},
		{k.Retry, k.Search, k.Back, k.Quit},
	}
}

type searchDoneMsg struct{ st session.State }

// detailsDoneMsg 带着发起时的序号；序号过期（用户已关闭或换了一部）时丢弃。
type detailsDoneMsg struct {
	seq int
	v   app.DetailView
}

type rotateTickMsg time.Time

type tuiModel struct {
	ctx context.Context
	app *app.App

	keys     keyMap
	help     help.Model
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	mode     mode
	prevMode mode
	layout   layout

	st      session.State
	loading bool
	cursor  int

	genres      []string
	genreCursor int

	favCursor int

	detail        *app.DetailView
	detailLoading bool
	detailSeq     int

	hasCredential bool
	notice        string
	lastInput     time.Time

	width  int
	height int
}

func newTUIModel(ctx context.Context, a *app.App, eff config.EffectiveConfig) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "搜索电影…"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return tuiModel{
		ctx:           ctx,
		app:           a,
		keys:          newKeyMap(),
		help:          help.New(),
		input:         ti,
		spinner:       sp,
		viewport:      viewport.New(80, 20),
		mode:          modeSearch,
		st:            a.State(),
		hasCredential: strings.TrimSpace(eff.APIKey) != "",
		width:         80,
		height:        24,
	}
}

func runTUI(ctx context.Context, a *app.App, eff config.EffectiveConfig) error {
	p := tea.NewProgram(newTUIModel(ctx, a, eff), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// openTUILog 把日志写到数据目录下的 moviefinder.log；失败时丢弃日志。
func openTUILog(dir string) (io.Writer, func()) {
	if strings.TrimSpace(dir) == "" {
		return io.Discard, func() {}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, "moviefinder.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { _ = f.Close() }
}

func rotateTick() tea.Cmd {
	return tea.Tick(carouselInterval, func(t time.Time) tea.Msg { return rotateTickMsg(t) })
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, rotateTick())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-8, 5)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case rotateTickMsg:
		if m.layout == layoutCarousel && m.mode == modeResults && !m.loading &&
			time.Since(m.lastInput) >= carouselIdle {
			if n := m.carouselLen(); n > 0 {
				m.cursor = (m.cursor + 1) % n
			}
		}
		return m, rotateTick()

	case searchDoneMsg:
		m.loading = false
		m.st = msg.st
		if m.cursor >= len(m.st.Results) {
			m.cursor = 0
		}
		// 有结果或可重试的错误时把焦点交给结果区（r 重试）；输入校验错误留在搜索框。
		retryable := m.st.Status == session.StatusError && m.st.CanRetry
		if m.mode == modeSearch && (len(m.st.Results) > 0 || retryable) {
			m.mode = modeResults
			m.input.Blur()
		}
		return m, nil

	case detailsDoneMsg:
		if m.mode != modeDetails || msg.seq != m.detailSeq {
			return m, nil
		}
		m.detailLoading = false
		v := msg.v
		m.detail = &v
		m.viewport.SetContent(m.formatDetails())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		m.lastInput = time.Now()
		m.notice = ""
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeResults:
			return m.updateResults(msg)
		case modeDetails:
			return m.updateDetails(msg)
		case modeGenres:
			return m.updateGenres(msg)
		case modeFavorites:
			return m.updateFavorites(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.loading {
			return m, nil
		}
		return m.startSearch()
	case "esc":
		if len(m.st.Results) > 0 {
			m.mode = modeResults
			m.input.Blur()
		}
		return m, nil
	case "tab":
		m.prevMode = modeSearch
		m.mode = modeGenres
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) startSearch() (tea.Model, tea.Cmd) {
	m.loading = true
	m.cursor = 0
	term, genres := m.input.Value(), append([]string(nil), m.genres...)
	a, ctx := m.app, m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return searchDoneMsg{st: a.Search(ctx, term, genres)}
	})
}

func (m tuiModel) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	n := len(m.st.Results)
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Back), key.Matches(msg, k.Search):
		m.mode = modeSearch
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, k.Left):
		m.cursor = m.move(-1)
	case key.Matches(msg, k.Right):
		m.cursor = m.move(1)
	case key.Matches(msg, k.Up):
		m.cursor = m.move(-m.rowStep())
	case key.Matches(msg, k.Down):
		m.cursor = m.move(m.rowStep())
	case key.Matches(msg, k.Open):
		if n > 0 && m.cursor < n {
			return m.openDetails(m.st.Results[m.cursor], modeResults)
		}
	case key.Matches(msg, k.More):
		if m.loading || !m.st.CanLoadMore {
			return m, nil
		}
		m.loading = true
		a, ctx := m.app, m.ctx
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return searchDoneMsg{st: a.LoadMore(ctx)} })
	case key.Matches(msg, k.Retry):
		if m.loading || m.st.Status != session.StatusError || !m.st.CanRetry {
			return m, nil
		}
		m.loading = true
		a, ctx := m.app, m.ctx
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return searchDoneMsg{st: a.Retry(ctx)} })
	case key.Matches(msg, k.Favorite):
		if n > 0 && m.cursor < n {
			m.toggleFavorite(m.st.Results[m.cursor])
		}
	case key.Matches(msg, k.Layout):
		if m.layout == layoutGrid {
			m.layout = layoutCarousel
			if m.cursor >= m.carouselLen() {
				m.cursor = 0
			}
		} else {
			m.layout = layoutGrid
		}
	case key.Matches(msg, k.Genres):
		m.prevMode = modeResults
		m.mode = modeGenres
	case key.Matches(msg, k.Favorites):
		m.prevMode = modeResults
		m.mode = modeFavorites
		m.favCursor = 0
	case key.Matches(msg, k.Clear):
		return m.clearSearch()
	case key.Matches(msg, k.ClearFavorites):
		m.app.ClearFavorites()
		m.notice = "已清空收藏"
	}
	return m, nil
}

func (m tuiModel) clearSearch() (tea.Model, tea.Cmd) {
	m.input.Reset()
	m.genres = nil
	m.st = m.app.Reset()
	m.loading = false
	m.cursor = 0
	m.mode = modeSearch
	cmd := m.input.Focus()
	return m, cmd
}

func (m *tuiModel) toggleFavorite(mv domain.Movie) {
	if m.app.Toggle(mv) {
		m.notice = "已收藏：" + mv.Title
	} else {
		m.notice = "已取消收藏：" + mv.Title
	}
}

func (m tuiModel) openDetails(partial domain.Movie, from mode) (tea.Model, tea.Cmd) {
	m.prevMode = from
	m.mode = modeDetails
	m.detail = nil
	m.detailLoading = true
	m.detailSeq++
	seq := m.detailSeq
	a, ctx := m.app, m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return detailsDoneMsg{seq: seq, v: a.OpenDetails(ctx, partial)}
	})
}

func (m tuiModel) updateDetails(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.mode = m.prevMode
		m.detail = nil
		m.detailLoading = false
		m.detailSeq++
		m.clampFavCursor()
		return m, nil
	case key.Matches(msg, m.keys.Favorite):
		if m.detail != nil {
			m.toggleFavorite(m.detail.Movie)
			m.detail.Favorite = m.app.IsFavorite(m.detail.Movie.ID)
			m.viewport.SetContent(m.formatDetails())
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m tuiModel) updateGenres(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.genreCursor > 0 {
			m.genreCursor--
		}
	case "down", "j":
		if m.genreCursor < len(domain.PopularGenres)-1 {
			m.genreCursor++
		}
	case " ", "enter":
		m.genres = domain.ToggleGenre(m.genres, domain.PopularGenres[m.genreCursor])
	case "esc", "g", "tab":
		m.mode = m.prevMode
		if m.mode == modeSearch {
			cmd := m.input.Focus()
			return m, cmd
		}
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m tuiModel) updateFavorites(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	favs := m.app.Favorites()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Favorites):
		m.mode = m.prevMode
		if m.mode == modeSearch {
			cmd := m.input.Focus()
			return m, cmd
		}
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Left):
		if m.favCursor > 0 {
			m.favCursor--
		}
	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Right):
		if m.favCursor < len(favs)-1 {
			m.favCursor++
		}
	case key.Matches(msg, m.keys.Open):
		if m.favCursor < len(favs) {
			return m.openDetails(favs[m.favCursor], modeFavorites)
		}
	case key.Matches(msg, m.keys.Favorite):
		if m.favCursor < len(favs) {
			m.toggleFavorite(favs[m.favCursor])
			m.clampFavCursor()
		}
	case key.Matches(msg, m.keys.ClearFavorites):
		m.app.ClearFavorites()
		m.favCursor = 0
		m.notice = "已清空收藏"
	}
	return m, nil
}

func (m *tuiModel) clampFavCursor() {
	if n := m.app.FavoritesCount(); m.favCursor >= n {
		m.favCursor = max(n-1, 0)
	}
}

func (m tuiModel) columns() int {
	return max(m.width/(cardWidth+2), 1)
}

func (m tuiModel) rowStep() int {
	if m.layout == layoutCarousel {
		return 1
	}
	return m.columns()
}

func (m tuiModel) carouselLen() int {
	return min(len(m.st.Results), carouselSegments)
}

// move 在结果中移动光标；走马灯循环，网格在边界处停住。
func (m tuiModel) move(delta int) int {
	if m.layout == layoutCarousel {
		n := m.carouselLen()
		if n == 0 {
			return 0
		}
		return ((m.cursor+delta)%n + n) % n
	}
	n := len(m.st.Results)
	next := m.cursor + delta
	if next < 0 || next >= n {
		return m.cursor
	}
	return next
}

func (m tuiModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("🎬 Movie Finder"))
	if c := m.app.FavoritesCount(); c > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  ♥ %d", c)))
	}
	sb.WriteString("\n")
	if !m.hasCredential {
		sb.WriteString(bannerStyle.Render(session.ErrMsgMissingCredential))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch m.mode {
	case modeDetails:
		sb.WriteString(m.viewDetails())
	case modeGenres:
		sb.WriteString(m.viewGenres())
	case modeFavorites:
		sb.WriteString(m.viewFavorites())
	default:
		sb.WriteString(m.viewSearch())
	}

	if m.notice != "" {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render(m.notice))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.help.View(m.keys))

	return lipgloss.NewStyle().MaxWidth(m.width).MaxHeight(m.height).Render(sb.String())
}

func (m tuiModel) viewSearch() string {
	var sb strings.Builder
	sb.WriteString(inputStyle.Render(m.input.View()))
	if len(m.genres) > 0 {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("类型：" + strings.Join(m.genres, ", ")))
	}
	sb.WriteString("\n\n")

	switch {
	case m.loading && len(m.st.Results) == 0:
		sb.WriteString(m.spinner.View() + " " + textStyle.Render("搜索中…"))
		return sb.String()
	case m.st.Status == session.StatusError:
		sb.WriteString(errorStyle.Render(m.st.Error))
		if m.st.CanRetry {
			sb.WriteString(dimStyle.Render("  （r 重试）"))
		}
		sb.WriteString("\n")
	}

	if len(m.st.Results) == 0 {
		if m.st.Status == session.StatusIdle {
			sb.WriteString(dimStyle.Render("输入片名后回车搜索；tab 选择类型"))
		}
		return sb.String()
	}

	if m.layout == layoutCarousel {
		sb.WriteString(m.viewCarousel())
	} else {
		sb.WriteString(m.viewGrid())
	}
	sb.WriteString("\n")
	sb.WriteString(subtitleStyle.Render(m.st.Summary()))
	if m.loading {
		sb.WriteString("  " + m.spinner.View())
	} else if m.st.CanLoadMore {
		sb.WriteString(dimStyle.Render("  （m 加载更多）"))
	}
	return sb.String()
}

func (m tuiModel) card(mv domain.Movie, selected bool) string {
	heart := ""
	if m.app.IsFavorite(mv.ID) {
		heart = " ♥"
	}
	body := textStyle.Render(truncate(mv.Title, cardWidth-4)) + "\n" +
		dimStyle.Render(mv.Year+" · "+mv.Type) + ratingStyle.Render(heart)
	if mv.HasRating() {
		body += "\n" + ratingStyle.Render("★ "+mv.Rating)
	}
	if selected {
		return selectedCardStyle.Render(body)
	}
	return cardStyle.Render(body)
}

func (m tuiModel) viewGrid() string {
	cols := m.columns()
	var rows []string
	var row []string
	for i, mv := range m.st.Results {
		row = append(row, m.card(mv, i == m.cursor && m.mode == modeResults))
		if len(row) == cols {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// viewCarousel：中间是当前条目的大卡片，两侧各露出相邻条目。
func (m tuiModel) viewCarousel() string {
	n := m.carouselLen()
	if n == 0 {
		return ""
	}
	at := func(off int) domain.Movie { return m.st.Results[((m.cursor+off)%n+n)%n] }

	cur := at(0)
	hero := titleStyle.Render(cur.Title) + "\n" +
		textStyle.Render(cur.Year+" · "+cur.Type) + "\n" +
		dimStyle.Render(cur.ID) + "\n" +
		dimStyle.Render(truncate(cur.PosterOr("（无海报）"), 36))
	if m.app.IsFavorite(cur.ID) {
		hero += "\n" + ratingStyle.Render("♥ 已收藏")
	}

	parts := []string{}
	if n > 2 {
		parts = append(parts, m.card(at(-1), false))
	}
	parts = append(parts, heroStyle.Render(hero))
	if n > 1 {
		parts = append(parts, m.card(at(1), false))
	}
	dots := dimStyle.Render(fmt.Sprintf("%d / %d", m.cursor+1, n))
	return lipgloss.JoinVertical(lipgloss.Center, lipgloss.JoinHorizontal(lipgloss.Center, parts...), dots)
}

func (m tuiModel) viewDetails() string {
	if m.detailLoading || m.detail == nil {
		return m.spinner.View() + " " + textStyle.Render("加载详情…")
	}
	return m.viewport.View()
}

func (m tuiModel) formatDetails() string {
	if m.detail == nil {
		return ""
	}
	v := m.detail
	mv := v.Movie

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(mv.Title + " (" + mv.Year + ")"))
	if v.Favorite {
		sb.WriteString(ratingStyle.Render("  ♥"))
	}
	sb.WriteString("\n\n")
	if mv.HasRating() {
		sb.WriteString(ratingStyle.Render("★ "+mv.Rating+" / 10") + "\n")
	}
	line := func(label, val string) {
		if val = strings.TrimSpace(val); val != "" && val != domain.NotAvailable {
			sb.WriteString(subtitleStyle.Render(label+"：") + textStyle.Render(val) + "\n")
		}
	}
	line("类型", mv.Genre)
	line("片长", mv.Runtime)
	line("上映", mv.Released)
	line("导演", mv.Director)
	line("主演", mv.Actors)
	line("海报", v.Poster)
	if s := v.Scores; s != nil {
		line("烂番茄（影评人）", s.Critic)
		line("烂番茄（观众）", s.Audience)
		if c := strings.TrimSpace(s.Consensus); c != "" {
			sb.WriteString("\n" + subtitleStyle.Render("影评共识") + "\n")
			sb.WriteString(textStyle.Render(wrapText(c, m.viewport.Width-4)) + "\n")
		}
	}
	if p := strings.TrimSpace(mv.Plot); p != "" && p != domain.NotAvailable {
		sb.WriteString("\n" + textStyle.Render(wrapText(p, m.viewport.Width-4)) + "\n")
	}
	if !v.Full {
		sb.WriteString("\n" + dimStyle.Render("未能获取完整信息，显示已有数据"))
	}
	return sb.String()
}

func (m tuiModel) viewGenres() string {
	var sb strings.Builder
	sb.WriteString(subtitleStyle.Render("选择类型（空格/回车切换，esc 完成）"))
	sb.WriteString("\n\n")
	for i, g := range domain.PopularGenres {
		mark := "[ ]"
		for _, s := range m.genres {
			if strings.EqualFold(s, g) {
				mark = "[x]"
				break
			}
		}
		item := mark + " " + g
		if i == m.genreCursor {
			sb.WriteString(titleStyle.Render("> " + item))
		} else {
			sb.WriteString(textStyle.Render("  " + item))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m tuiModel) viewFavorites() string {
	favs := m.app.Favorites()
	var sb strings.Builder
	sb.WriteString(subtitleStyle.Render(fmt.Sprintf("收藏夹（%d）", len(favs))))
	sb.WriteString("\n\n")
	if len(favs) == 0 {
		sb.WriteString(dimStyle.Render("还没有收藏；在结果中按 f 收藏"))
		return sb.String()
	}
	for i, mv := range favs {
		item := fmt.Sprintf("%s (%s)", mv.Title, mv.Year)
		if mv.HasRating() {
			item += " ★ " + mv.Rating
		}
		if i == m.favCursor {
			sb.WriteString(titleStyle.Render("> " + item))
		} else {
			sb.WriteString(textStyle.Render("  " + item))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// wrapText 按词折行（宽度按字节粗算）。
func wrapText(text string, width int) string {
	if width <= 10 {
		width = 60
	}
	var sb strings.Builder
	lineLen := 0
	for _, w := range strings.Fields(text) {
		if lineLen > 0 && lineLen+1+len(w) > width {
			sb.WriteString("\n")
			lineLen = 0
		} else if lineLen > 0 {
			sb.WriteString(" ")
			lineLen++
		}
		sb.WriteString(w)
		lineLen += len(w)
	}
	return sb.String()
}
