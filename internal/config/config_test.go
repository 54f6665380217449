package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate 清理会影响合并结果的环境变量，并把 XDG_CONFIG_HOME 指向临时目录。
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvFavorites, "")
	return xdg
}

func TestLoadEffective_NoConfigUsesDefaults(t *testing.T) {
	xdg := isolate(t)
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("期望没有配置文件，实际 %q", eff.ConfigPath)
	}
	if eff.APIKey != "" {
		t.Fatalf("期望 api_key 为空（降级而非报错），实际 %q", eff.APIKey)
	}
	if eff.BaseURL != DefaultBaseURL || eff.Timeout != DefaultTimeout {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.FavoritesBackend != "file" {
		t.Fatalf("期望默认 backend=file，实际 %q", eff.FavoritesBackend)
	}
	if want := filepath.Join(xdg, "moviefinder"); eff.FavoritesDir != want {
		t.Fatalf("期望 favorites 目录 %q，实际 %q", want, eff.FavoritesDir)
	}
	if eff.ServeAddr != DefaultServeAddr || eff.RateLimit != DefaultRateLimit {
		t.Fatalf("serve 默认值不符合预期：%+v", eff)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.json"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_InvalidJSON(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "moviefinder.json"), []byte(`{"api_key":`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_APIKeyMergeOrder(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "moviefinder.json"), []byte(`{"api_key":"from-file"}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.APIKey != "from-file" {
		t.Fatalf("期望 api_key=from-file，实际 %q", eff.APIKey)
	}

	t.Setenv(EnvAPIKey, "from-env")
	eff, _ = LoadEffective(cwd, CLIArgs{})
	if eff.APIKey != "from-env" {
		t.Fatalf("环境变量应覆盖配置文件，实际 %q", eff.APIKey)
	}

	eff, _ = LoadEffective(cwd, CLIArgs{APIKey: "from-cli"})
	if eff.APIKey != "from-cli" {
		t.Fatalf("CLI 应覆盖环境变量，实际 %q", eff.APIKey)
	}
}

func TestLoadEffective_YAMLDiscovery(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "moviefinder.yaml"), []byte(`
api_key: abc
timeout: 3s
favorites:
  backend: sqlite
  path: data
rottentomatoes:
  enabled: true
serve:
  addr: ":9090"
  rate_limit: 0
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, "moviefinder.yaml") {
		t.Fatalf("期望读取 moviefinder.yaml，实际 %q", eff.ConfigPath)
	}
	if eff.Timeout != 3*time.Second {
		t.Fatalf("期望 timeout=3s，实际 %v", eff.Timeout)
	}
	if eff.FavoritesBackend != "sqlite" || eff.FavoritesDir != filepath.Join(cwd, "data") {
		t.Fatalf("favorites 不符合预期：%q %q", eff.FavoritesBackend, eff.FavoritesDir)
	}
	if !eff.RTEnabled || eff.RTBaseURL != DefaultRTBaseURL {
		t.Fatalf("rottentomatoes 不符合预期：%v %q", eff.RTEnabled, eff.RTBaseURL)
	}
	if eff.ServeAddr != ":9090" || eff.RateLimit != 0 {
		t.Fatalf("serve 不符合预期：%q %d", eff.ServeAddr, eff.RateLimit)
	}
}

func TestLoadEffective_YAMLUnknownField(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "moviefinder.yml"), []byte("apikey: typo\n"))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("YAML 未知字段应报 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_JSONPreferredOverYAML(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "moviefinder.json"), []byte(`{"api_key":"json"}`))
	writeFile(t, filepath.Join(cwd, "moviefinder.yaml"), []byte("api_key: yaml\n"))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.APIKey != "json" {
		t.Fatalf("期望优先读取 moviefinder.json，实际 api_key=%q", eff.APIKey)
	}
}

func TestLoadEffective_FavoritesEnvOverride(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "moviefinder.json"), []byte(`{"favorites":{"backend":"badger"}}`))
	t.Setenv(EnvFavorites, "Memory")

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.FavoritesBackend != "memory" {
		t.Fatalf("期望 backend=memory，实际 %q", eff.FavoritesBackend)
	}
}

func TestLoadEffective_RejectsInvalidFields(t *testing.T) {
	cases := map[string]string{
		"backend":    `{"favorites":{"backend":"etcd"}}`,
		"redis addr": `{"favorites":{"backend":"redis"}}`,
		"timeout":    `{"timeout":"soon"}`,
		"timeout<=0": `{"timeout":"0s"}`,
		"base_url":   `{"base_url":"ftp://omdb"}`,
		"rate_limit": `{"serve":{"rate_limit":-1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, "moviefinder.json"), []byte(body))
			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
			}
		})
	}
}

func TestLoadEffective_CLIServeAddr(t *testing.T) {
	isolate(t)
	eff, err := LoadEffective(t.TempDir(), CLIArgs{ServeAddr: ":7000", LogLevel: "debug"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ServeAddr != ":7000" || eff.LogLevel != "debug" {
		t.Fatalf("CLI 参数未生效：%+v", eff)
	}
}

func TestLoadEffective_InvalidProxyURL(t *testing.T) {
	isolate(t)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "moviefinder.json"), []byte(`{"proxy":{"url":"http://[::1"}}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}
