package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultBaseURL   = "https://www.omdbapi.com"
	DefaultRTBaseURL = "https://www.rottentomatoes.com"
	DefaultTimeout   = 15 * time.Second
	DefaultBackend   = "file"
	DefaultServeAddr = "127.0.0.1:8080"
	// DefaultRateLimit 是本地 API 每个客户端 IP 每分钟的请求上限。
	DefaultRateLimit = 120
)

const (
	EnvAPIKey    = "OMDB_API_KEY"
	EnvFavorites = "MOVIEFINDER_FAVORITES"
)

// 按顺序探测的配置文件名（cwd 下，可选）。
var discoverNames = []string{"moviefinder.json", "moviefinder.yaml", "moviefinder.yml"}

// CLIArgs 是 CLI 暴露的全局参数；空串表示未指定。
type CLIArgs struct {
	ConfigPath string
	APIKey     string
	LogLevel   string
	ServeAddr  string
}

// FileConfig 对应 moviefinder.json / moviefinder.yaml 的解析结构。
type FileConfig struct {
	APIKey         string                `json:"api_key" yaml:"api_key"`
	BaseURL        string                `json:"base_url" yaml:"base_url"`
	Timeout        string                `json:"timeout" yaml:"timeout"`
	LogLevel       string                `json:"log_level" yaml:"log_level"`
	Proxy          *ProxyConfig          `json:"proxy" yaml:"proxy"`
	Favorites      *FavoritesConfig      `json:"favorites" yaml:"favorites"`
	RottenTomatoes *RottenTomatoesConfig `json:"rottentomatoes" yaml:"rottentomatoes"`
	Serve          *ServeConfig          `json:"serve" yaml:"serve"`
}

type ProxyConfig struct {
	URL string `json:"url" yaml:"url"`
}

type FavoritesConfig struct {
	Backend string       `json:"backend" yaml:"backend"`
	Path    string       `json:"path" yaml:"path"`
	Redis   *RedisConfig `json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type RottenTomatoesConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

type ServeConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	RateLimit *int   `json:"rate_limit" yaml:"rate_limit"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；没有配置文件时为空。
	ConfigPath string

	// APIKey 为空不是错误：搜索与详情会走“缺少凭证”的降级路径。
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	LogLevel string
	ProxyURL string

	FavoritesBackend string
	// FavoritesDir 是 file/badger/sqlite 后端的数据目录。
	FavoritesDir string
	Redis        RedisConfig

	RTEnabled bool
	RTBaseURL string

	ServeAddr string
	// RateLimit 为 0 表示不限速。
	RateLimit int
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则依次探测 <cwd>/moviefinder.json、.yaml、.yml（都可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range discoverNames {
			p := filepath.Join(cwdAbs, name)
			f, exists, e := readFileConfig(p)
			if e != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: e}
			}
			if exists {
				cfgPath, fc = p, f
				break
			}
		}
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		BaseURL:          DefaultBaseURL,
		Timeout:          DefaultTimeout,
		FavoritesBackend: DefaultBackend,
		RTBaseURL:        DefaultRTBaseURL,
		ServeAddr:        DefaultServeAddr,
		RateLimit:        DefaultRateLimit,
	}

	// api_key：CLI > env > config
	eff.APIKey = firstNonEmpty(cli.APIKey, os.Getenv(EnvAPIKey), fc.APIKey)
	eff.LogLevel = firstNonEmpty(cli.LogLevel, fc.LogLevel)

	if u := strings.TrimSpace(fc.BaseURL); u != "" {
		if err := validateHTTPURL("base_url", u); err != nil {
			return EffectiveConfig{}, err
		}
		eff.BaseURL = strings.TrimRight(u, "/")
	}

	if t := strings.TrimSpace(fc.Timeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("timeout 无效：%w", err)
		}
		if d <= 0 {
			return EffectiveConfig{}, fmt.Errorf("timeout 必须大于 0，实际是 %q", t)
		}
		eff.Timeout = d
	}

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		if _, err := url.Parse(eff.ProxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}

	// favorites：backend 环境变量 > config > 默认 file
	var favPath string
	if fc.Favorites != nil {
		if b := strings.TrimSpace(fc.Favorites.Backend); b != "" {
			eff.FavoritesBackend = b
		}
		favPath = strings.TrimSpace(fc.Favorites.Path)
		if fc.Favorites.Redis != nil {
			eff.Redis = *fc.Favorites.Redis
			eff.Redis.Addr = strings.TrimSpace(eff.Redis.Addr)
		}
	}
	if b := strings.TrimSpace(os.Getenv(EnvFavorites)); b != "" {
		eff.FavoritesBackend = b
	}
	eff.FavoritesBackend = strings.ToLower(eff.FavoritesBackend)
	if err := validateBackend(eff.FavoritesBackend); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.FavoritesBackend == "redis" && eff.Redis.Addr == "" {
		return EffectiveConfig{}, fmt.Errorf("favorites.backend=redis 但 favorites.redis.addr 为空")
	}
	if favPath != "" {
		eff.FavoritesDir = absCleanFrom(cwdAbs, favPath)
	} else {
		eff.FavoritesDir = defaultDataDir(cwdAbs)
	}

	if fc.RottenTomatoes != nil {
		eff.RTEnabled = fc.RottenTomatoes.Enabled
		if u := strings.TrimSpace(fc.RottenTomatoes.BaseURL); u != "" {
			if err := validateHTTPURL("rottentomatoes.base_url", u); err != nil {
				return EffectiveConfig{}, err
			}
			eff.RTBaseURL = strings.TrimRight(u, "/")
		}
	}

	if fc.Serve != nil {
		if a := strings.TrimSpace(fc.Serve.Addr); a != "" {
			eff.ServeAddr = a
		}
		if fc.Serve.RateLimit != nil {
			if *fc.Serve.RateLimit < 0 {
				return EffectiveConfig{}, fmt.Errorf("serve.rate_limit 不能为负数：%d", *fc.Serve.RateLimit)
			}
			eff.RateLimit = *fc.Serve.RateLimit
		}
	}
	if a := strings.TrimSpace(cli.ServeAddr); a != "" {
		eff.ServeAddr = a
	}

	return eff, nil
}

func validateBackend(b string) error {
	switch b {
	case "file", "badger", "sqlite", "redis", "memory":
		return nil
	default:
		return fmt.Errorf("favorites.backend 只能是 file/badger/sqlite/redis/memory，实际是 %q", b)
	}
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// defaultDataDir 返回 $XDG_CONFIG_HOME/moviefinder（或 ~/.config/moviefinder）；
// 取不到用户目录时退回 <cwd>/.moviefinder。
func defaultDataDir(cwdAbs string) string {
	if d, err := os.UserConfigDir(); err == nil && strings.TrimSpace(d) != "" {
		return filepath.Join(d, "moviefinder")
	}
	return filepath.Join(cwdAbs, ".moviefinder")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件（按扩展名选择 JSON 或 YAML）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil {
			// 空文件视为全部默认。
			if errors.Is(err, io.EOF) {
				return FileConfig{}, true, nil
			}
			return FileConfig{}, true, err
		}
	default:
		if err := json.Unmarshal(b, &fc); err != nil {
			return FileConfig{}, true, err
		}
	}
	return fc, true, nil
}
