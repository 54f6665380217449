package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/John-Robertt/moviefinder/internal/app"
	"github.com/John-Robertt/moviefinder/internal/config"
	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/infra/httpx"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/nfo"
	providerx "github.com/John-Robertt/moviefinder/internal/provider"
	"github.com/John-Robertt/moviefinder/internal/server"
	"github.com/John-Robertt/moviefinder/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &cli{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdoutTTY: isTTY(os.Stdout),
		stderrTTY: isTTY(os.Stderr),
	}
	code := c.run(ctx, os.Args[1:])
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// cli 持有输出目标与 TTY 判定，便于测试在进程内驱动。
//
// 输出契约：
// - stdout 是 TTY：人类可读的行
// - stdout 非 TTY：stdout 必须且仅输出一个 JSON 文档（摘要/进度走 stderr）
// - 退出码：0 成功；1 运行期/状态错误；2 用法错误
type cli struct {
	stdout    io.Writer
	stderr    io.Writer
	stdoutTTY bool
	stderrTTY bool

	// cwd 为空时使用 os.Getwd()。
	cwd string
	// build 为空时使用 app.Build（测试可替换）。
	build func(ctx context.Context, eff config.EffectiveConfig, obs app.Observer) (*app.App, func() error, error)
	// tui 为空时使用 runTUI。
	tui func(ctx context.Context, a *app.App, eff config.EffectiveConfig) error
}

type globalArgs struct {
	ConfigPath string
	APIKey     string
	LogLevel   string
}

func (c *cli) run(ctx context.Context, args []string) int {
	g, rest, err := parseGlobalArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		c.printUsage()
		return 2
	}
	if len(rest) == 0 || isHelp(rest[0]) {
		c.printUsage()
		return 0
	}

	switch rest[0] {
	case "search":
		return c.searchCmd(ctx, g, rest[1:])
	case "details":
		return c.detailsCmd(ctx, g, rest[1:])
	case "fav":
		return c.favCmd(ctx, g, rest[1:])
	case "tui":
		return c.tuiCmd(ctx, g, rest[1:])
	case "serve":
		return c.serveCmd(ctx, g, rest[1:])
	default:
		fmt.Fprintf(c.stderr, "未知命令：%q\n\n", rest[0])
		c.printUsage()
		return 2
	}
}

// parseGlobalArgs 从任意位置摘出全局参数，其余原样返回。
func parseGlobalArgs(args []string) (globalArgs, []string, error) {
	var g globalArgs
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		name, val, hasVal := strings.Cut(a, "=")
		var dst *string
		switch name {
		case "--config":
			dst = &g.ConfigPath
		case "--api-key":
			dst = &g.APIKey
		case "--log-level":
			dst = &g.LogLevel
		default:
			rest = append(rest, a)
			continue
		}
		if !hasVal {
			if i+1 >= len(args) {
				return globalArgs{}, nil, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			val = args[i]
		}
		if strings.TrimSpace(val) == "" {
			return globalArgs{}, nil, fmt.Errorf("%s 不能为空", name)
		}
		*dst = val
	}
	return g, rest, nil
}

// flagValue 解析 "--name v" 与 "--name=v" 两种写法；返回新的下标。
func flagValue(args []string, i int, name string) (string, int, bool, error) {
	a := args[i]
	if a == name {
		if i+1 >= len(args) {
			return "", i, true, fmt.Errorf("%s 需要一个值", name)
		}
		return args[i+1], i + 1, true, nil
	}
	if v, ok := strings.CutPrefix(a, name+"="); ok {
		return v, i, true, nil
	}
	return "", i, false, nil
}

func (c *cli) loadConfig(g globalArgs, serveAddr string) (config.EffectiveConfig, bool) {
	cwd := c.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(c.stderr, "读取当前目录失败：%v\n", err)
			return config.EffectiveConfig{}, false
		}
		cwd = wd
	}
	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath: g.ConfigPath,
		APIKey:     g.APIKey,
		LogLevel:   g.LogLevel,
		ServeAddr:  serveAddr,
	})
	if err != nil {
		c.emitError(config.Code(err), err.Error())
		return config.EffectiveConfig{}, false
	}
	return eff, true
}

// open 读取配置、初始化日志并装配 App。
func (c *cli) open(ctx context.Context, g globalArgs, serveAddr string, logOut io.Writer, withProgress bool) (*app.App, config.EffectiveConfig, func(), bool) {
	eff, ok := c.loadConfig(g, serveAddr)
	if !ok {
		return nil, config.EffectiveConfig{}, nil, false
	}
	if logOut == nil {
		logOut = c.stderr
	}
	logx.Configure(logx.Config{Level: eff.LogLevel, Output: logOut})

	var obs app.Observer
	if withProgress && c.stderrTTY {
		p := newProgressUI(c.stderr)
		p.PrintConfig(eff)
		obs = p
	}

	build := c.build
	if build == nil {
		build = app.Build
	}
	a, closeFn, err := build(ctx, eff, obs)
	if err != nil {
		c.emitError("init_failed", err.Error())
		return nil, config.EffectiveConfig{}, nil, false
	}
	if strings.TrimSpace(eff.APIKey) == "" {
		fmt.Fprintf(c.stderr, "提示：%s（或使用 --api-key）\n", session.ErrMsgMissingCredential)
	}
	cleanup := func() {
		if err := closeFn(); err != nil {
			l := logx.WithComponent("cli")
			l.Warn().Err(err).Msg("close favorites backend")
		}
	}
	return a, eff, cleanup, true
}

func (c *cli) searchCmd(ctx context.Context, g globalArgs, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			c.printSearchUsage()
			return 0
		}
	}

	var (
		terms  []string
		genres []string
		page   = 1
	)
	for i := 0; i < len(args); i++ {
		if v, ni, ok, err := flagValue(args, i, "--page"); ok {
			if err != nil {
				return c.usageError(err, c.printSearchUsage)
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 {
				return c.usageError(fmt.Errorf("--page 必须是正整数，实际是 %q", v), c.printSearchUsage)
			}
			page, i = n, ni
			continue
		}
		if v, ni, ok, err := flagValue(args, i, "--genre"); ok {
			if err != nil {
				return c.usageError(err, c.printSearchUsage)
			}
			if genre := strings.TrimSpace(v); genre != "" {
				genres = append(genres, genre)
			}
			i = ni
			continue
		}
		if strings.HasPrefix(args[i], "-") {
			return c.usageError(fmt.Errorf("未知参数 %q", args[i]), c.printSearchUsage)
		}
		terms = append(terms, args[i])
	}

	a, _, cleanup, ok := c.open(ctx, g, "", nil, true)
	if !ok {
		return 1
	}
	defer cleanup()

	term := strings.Join(terms, " ")
	var st session.State
	if page == 1 {
		st = a.Search(ctx, term, genres)
	} else {
		st = a.SearchPage(ctx, term, genres, page)
	}
	c.emitState(st)
	if st.Status == session.StatusError {
		return 1
	}
	return 0
}

func (c *cli) detailsCmd(ctx context.Context, g globalArgs, args []string) int {
	if len(args) == 1 && isHelp(args[0]) {
		c.printUsage()
		return 0
	}
	if len(args) != 1 || strings.HasPrefix(args[0], "-") {
		return c.usageError(errors.New("details 需要且只需要一个 imdbID"), c.printUsage)
	}

	a, _, cleanup, ok := c.open(ctx, g, "", nil, true)
	if !ok {
		return 1
	}
	defer cleanup()

	v := a.OpenDetails(ctx, domain.Movie{ID: args[0]})
	if !v.Full {
		c.emitError("not_found", "获取电影详情失败："+args[0])
		return 1
	}
	if !c.stdoutTTY {
		c.emitJSON(v)
		return 0
	}
	writeDetails(c.stdout, v)
	return 0
}

type favoriteResult struct {
	ID       string `json:"imdbID"`
	Favorite bool   `json:"favorite"`
	Count    int    `json:"count"`
}

func (c *cli) favCmd(ctx context.Context, g globalArgs, args []string) int {
	if len(args) == 0 || isHelp(args[0]) {
		c.printFavUsage()
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	sub, rest := args[0], args[1:]
	var genres []string
	switch sub {
	case "list":
		for i := 0; i < len(rest); i++ {
			v, ni, ok, err := flagValue(rest, i, "--genre")
			if !ok {
				return c.usageError(fmt.Errorf("fav list 不接受参数 %q", rest[i]), c.printFavUsage)
			}
			if err != nil {
				return c.usageError(err, c.printFavUsage)
			}
			if genre := strings.TrimSpace(v); genre != "" {
				genres = append(genres, genre)
			}
			i = ni
		}
	case "clear":
		if len(rest) != 0 {
			return c.usageError(fmt.Errorf("fav %s 不接受参数", sub), c.printFavUsage)
		}
	case "add", "remove", "toggle":
		if len(rest) != 1 || strings.HasPrefix(rest[0], "-") {
			return c.usageError(fmt.Errorf("fav %s 需要一个 imdbID", sub), c.printFavUsage)
		}
	case "export":
		return c.favExportCmd(ctx, g, rest)
	default:
		return c.usageError(fmt.Errorf("未知的 fav 子命令 %q", sub), c.printFavUsage)
	}

	a, _, cleanup, ok := c.open(ctx, g, "", nil, false)
	if !ok {
		return 1
	}
	defer cleanup()

	switch sub {
	case "list":
		favs := domain.FilterByGenres(a.Favorites(), genres)
		if !c.stdoutTTY {
			c.emitJSON(favs)
			return 0
		}
		if len(favs) == 0 {
			fmt.Fprintln(c.stdout, "还没有收藏")
			return 0
		}
		writeMovies(c.stdout, favs)
		fmt.Fprintf(c.stdout, "共 %d 部收藏\n", len(favs))
		return 0
	case "clear":
		a.ClearFavorites()
		c.emitFavorite(favoriteResult{Count: a.FavoritesCount()}, "已清空收藏")
		return 0
	}

	id := strings.TrimSpace(rest[0])
	want := sub == "add" || (sub == "toggle" && !a.IsFavorite(id))
	if want == a.IsFavorite(id) {
		c.emitFavorite(favoriteResult{ID: id, Favorite: want, Count: a.FavoritesCount()}, "无变化")
		return 0
	}

	var m domain.Movie
	if want {
		// 收藏需要完整记录：先查电影库，失败则不改状态。
		v := a.OpenDetails(ctx, domain.Movie{ID: id})
		if !v.Full {
			c.emitError("not_found", "获取电影详情失败："+id)
			return 1
		}
		m = v.Movie
	} else {
		m, _ = a.Lookup(id)
		m.ID = id
	}
	fav := a.Toggle(m)
	msg := "已取消收藏"
	if fav {
		msg = "已收藏：" + m.Title
	}
	c.emitFavorite(favoriteResult{ID: id, Favorite: fav, Count: a.FavoritesCount()}, msg)
	return 0
}

type exportDoc struct {
	nfo.ExportResult
	Posters *nfo.PosterResult `json:"posters,omitempty"`
}

func (c *cli) favExportCmd(ctx context.Context, g globalArgs, args []string) int {
	var (
		dir       string
		overwrite bool
		posters   bool
	)
	for _, a := range args {
		switch {
		case isHelp(a):
			c.printFavUsage()
			return 0
		case a == "--overwrite":
			overwrite = true
		case a == "--posters":
			posters = true
		case strings.HasPrefix(a, "-"):
			return c.usageError(fmt.Errorf("未知参数 %q", a), c.printFavUsage)
		default:
			if dir != "" {
				return c.usageError(fmt.Errorf("重复的导出目录：%q 与 %q", dir, a), c.printFavUsage)
			}
			dir = a
		}
	}
	if dir == "" {
		return c.usageError(errors.New("fav export 需要一个目录"), c.printFavUsage)
	}

	a, eff, cleanup, ok := c.open(ctx, g, "", nil, false)
	if !ok {
		return 1
	}
	defer cleanup()

	favs := a.Favorites()
	res, err := nfo.Export(dir, favs, overwrite)
	if err != nil {
		c.emitError("export_failed", err.Error())
		return 1
	}
	doc := exportDoc{ExportResult: res}

	if posters {
		client, err := httpx.NewScrapeClient(eff.ProxyURL, eff.Timeout)
		if err != nil {
			c.emitError("export_failed", err.Error())
			return 1
		}
		fetch := func(ctx context.Context, u string) ([]byte, error) {
			return providerx.FetchPage(ctx, client, u, 0)
		}
		pr, err := nfo.ExportPosters(ctx, dir, favs, overwrite, fetch)
		if err != nil {
			c.emitError("export_failed", err.Error())
			return 1
		}
		doc.Posters = &pr
	}

	if !c.stdoutTTY {
		c.emitJSON(doc)
	} else {
		for _, p := range res.Written {
			fmt.Fprintf(c.stdout, "写入 %s\n", p)
		}
		for _, p := range res.Skipped {
			fmt.Fprintf(c.stdout, "跳过 %s（已存在）\n", p)
		}
		if doc.Posters != nil {
			for _, p := range doc.Posters.Written {
				fmt.Fprintf(c.stdout, "写入 %s\n", p)
			}
			for _, p := range doc.Posters.Skipped {
				fmt.Fprintf(c.stdout, "跳过 %s（已存在）\n", p)
			}
		}
	}
	fmt.Fprintf(c.stderr, "完成：written=%d skipped=%d\n", len(res.Written), len(res.Skipped))
	if doc.Posters != nil {
		fmt.Fprintf(c.stderr, "海报：written=%d skipped=%d failed=%d\n",
			len(doc.Posters.Written), len(doc.Posters.Skipped), len(doc.Posters.Failed))
		for _, f := range doc.Posters.Failed {
			fmt.Fprintf(c.stderr, "  %s\n", f)
		}
	}
	return 0
}

func (c *cli) tuiCmd(ctx context.Context, g globalArgs, args []string) int {
	if len(args) > 0 {
		if isHelp(args[0]) {
			c.printUsage()
			return 0
		}
		return c.usageError(fmt.Errorf("tui 不接受参数 %q", args[0]), c.printUsage)
	}
	if !c.stdoutTTY {
		fmt.Fprintln(c.stderr, "tui 需要交互终端")
		return 2
	}

	// 终端被界面占用：日志写到数据目录下的文件。
	eff, ok := c.loadConfig(g, "")
	if !ok {
		return 1
	}
	logOut, closeLog := openTUILog(eff.FavoritesDir)
	defer closeLog()

	a, eff, cleanup, ok := c.open(ctx, g, "", logOut, false)
	if !ok {
		return 1
	}
	defer cleanup()

	run := c.tui
	if run == nil {
		run = runTUI
	}
	if err := run(ctx, a, eff); err != nil {
		fmt.Fprintf(c.stderr, "tui 退出：%v\n", err)
		return 1
	}
	return 0
}

func (c *cli) serveCmd(ctx context.Context, g globalArgs, args []string) int {
	addr := ""
	for i := 0; i < len(args); i++ {
		if isHelp(args[i]) {
			c.printUsage()
			return 0
		}
		v, ni, ok, err := flagValue(args, i, "--addr")
		if !ok {
			return c.usageError(fmt.Errorf("未知参数 %q", args[i]), c.printUsage)
		}
		if err != nil {
			return c.usageError(err, c.printUsage)
		}
		if strings.TrimSpace(v) == "" {
			return c.usageError(errors.New("--addr 不能为空"), c.printUsage)
		}
		addr, i = v, ni
	}

	a, eff, cleanup, ok := c.open(ctx, g, addr, nil, false)
	if !ok {
		return 1
	}
	defer cleanup()

	logger := logx.WithComponent("server")
	h := server.NewHandler(a, server.Options{RateLimit: eff.RateLimit, Logger: logger})
	if err := server.Run(ctx, eff.ServeAddr, h, logger, nil); err != nil {
		fmt.Fprintf(c.stderr, "服务退出：%v\n", err)
		return 1
	}
	return 0
}

func (c *cli) usageError(err error, usage func()) int {
	fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
	usage()
	return 2
}

type errorDoc struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// emitError：非 TTY 时 stdout 仍输出一个 JSON 文档（错误文档），人类可读版本总是写 stderr。
func (c *cli) emitError(code, msg string) {
	if !c.stdoutTTY {
		c.emitJSON(errorDoc{Error: code, Detail: msg})
	}
	fmt.Fprintf(c.stderr, "%s: %s\n", code, msg)
}

func (c *cli) emitJSON(v any) {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (c *cli) emitState(st session.State) {
	if !c.stdoutTTY {
		c.emitJSON(st)
		if st.Status == session.StatusError {
			fmt.Fprintf(c.stderr, "错误：%s\n", st.Error)
		} else if s := st.Summary(); s != "" {
			fmt.Fprintln(c.stderr, s)
		}
		return
	}

	if st.Status == session.StatusError {
		fmt.Fprintf(c.stderr, "错误：%s\n", st.Error)
		return
	}
	writeMovies(c.stdout, st.Results)
	fmt.Fprintln(c.stdout, st.Summary())
	if st.CanLoadMore {
		fmt.Fprintf(c.stdout, "还有更多结果：使用 --page %d 查看下一页\n", st.Page+1)
	}
}

func (c *cli) emitFavorite(r favoriteResult, human string) {
	if !c.stdoutTTY {
		c.emitJSON(r)
		return
	}
	fmt.Fprintf(c.stdout, "%s（共 %d 部收藏）\n", human, r.Count)
}

func writeMovies(w io.Writer, ms []domain.Movie) {
	for i, m := range ms {
		fmt.Fprintf(w, "%3d. %s (%s) [%s]", i+1, m.Title, m.Year, m.ID)
		if m.HasRating() {
			fmt.Fprintf(w, " ★ %s", m.Rating)
		}
		fmt.Fprintln(w)
	}
}

func writeDetails(w io.Writer, v app.DetailView) {
	m := v.Movie
	fmt.Fprintf(w, "%s (%s)\n", m.Title, m.Year)
	fmt.Fprintf(w, "  imdbID: %s\n", m.ID)
	line := func(label, val string) {
		if val = strings.TrimSpace(val); val != "" && val != domain.NotAvailable {
			fmt.Fprintf(w, "  %s: %s\n", label, val)
		}
	}
	line("类型", m.Genre)
	line("片长", m.Runtime)
	line("上映", m.Released)
	line("导演", m.Director)
	line("主演", m.Actors)
	line("IMDb", m.Rating)
	line("海报", v.Poster)
	if s := v.Scores; s != nil {
		line("烂番茄（影评人）", s.Critic)
		line("烂番茄（观众）", s.Audience)
		line("影评共识", s.Consensus)
	}
	if v.Favorite {
		fmt.Fprintln(w, "  ♥ 已收藏")
	}
	if p := strings.TrimSpace(m.Plot); p != "" && p != domain.NotAvailable {
		fmt.Fprintf(w, "\n%s\n", p)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (c *cli) printUsage() {
	fmt.Fprint(c.stdout, `用法：
  moviefinder [全局参数] <命令> [参数]

命令：
  search <词> [--page N] [--genre G]...   搜索电影
  details <imdbID>                         查看完整信息
  fav list|add|remove|toggle|clear|export  管理收藏
  tui                                      交互式终端界面
  serve [--addr 127.0.0.1:8080]            启动本地 JSON API

全局参数：
  --config <file>      配置文件（默认探测 ./moviefinder.json|yaml|yml）
  --api-key <key>      OMDb API key（优先于环境变量 OMDB_API_KEY）
  --log-level <lvl>    debug|info|warn|error
  -h, --help           显示帮助
`)
}

func (c *cli) printSearchUsage() {
	fmt.Fprint(c.stdout, `用法：
  moviefinder search <词> [--page N] [--genre G]...

参数：
  --page   页码（每页最多 10 条，默认 1）
  --genre  类型筛选，可重复；会拼接到搜索词后
`)
}

func (c *cli) printFavUsage() {
	fmt.Fprint(c.stdout, `用法：
  moviefinder fav list [--genre G]...                 只列出命中任一类型的收藏
  moviefinder fav add <imdbID>
  moviefinder fav remove <imdbID>
  moviefinder fav toggle <imdbID>
  moviefinder fav clear
  moviefinder fav export <dir> [--overwrite] [--posters]
      导出 <dir>/<imdbID>/movie.nfo（默认不覆盖已有文件）；--posters 同时下载 poster.jpg
`)
}
