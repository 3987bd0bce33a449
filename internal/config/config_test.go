package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
  "tracker": {"breakpoints": [320, 480, 640], "debounce": "50ms", "announce": "@every 1m"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "notifier": {"enabled": true, "dedup_window": "1s", "dismiss_after": "4s"},
  "storage": {"driver": "sqlite", "path": "./state/mediatrack.db", "busy_timeout": "2s"}
}`

const yamlConfig = `
tracker:
  breakpoints: [320, 480, 640]
  debounce: 50ms
  announce: "@every 1m"
logging:
  level: debug
  console: true
notifier:
  enabled: true
  dedup_window: 1s
  dismiss_after: 4s
storage:
  driver: sqlite
  path: ./state/mediatrack.db
  busy_timeout: 2s
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadJSONAndYAMLAgree(t *testing.T) {
	dir := t.TempDir()

	jm := NewConfigManager(writeFile(t, dir, "config.json", jsonConfig))
	jc, err := jm.Load()
	require.NoError(t, err)

	ym := NewConfigManager(writeFile(t, dir, "config.yaml", yamlConfig))
	yc, err := ym.Load()
	require.NoError(t, err)

	assert.Equal(t, jc, yc)
	assert.Same(t, jc, jm.Get())
	assert.Equal(t, []int{320, 480, 640}, jc.Tracker.Breakpoints)
	assert.Equal(t, "50ms", jc.Tracker.Debounce)
	assert.Equal(t, "debug", jc.Logging.Level)
	require.NotNil(t, jc.Storage)
	assert.Equal(t, "sqlite", jc.Storage.Driver)
	assert.Equal(t, "1s", jc.NotifierOrDefault().DedupWindow)
}

func TestParseIsStrict(t *testing.T) {
	dir := t.TempDir()

	_, err := NewConfigManager(writeFile(t, dir, "unknown.json", `{"tracker": {"breakpionts": [1]}}`)).Parse()
	assert.ErrorContains(t, err, "breakpionts")

	_, err = NewConfigManager(writeFile(t, dir, "trailing.json", `{} {}`)).Parse()
	assert.ErrorContains(t, err, "trailing data")

	_, err = NewConfigManager(filepath.Join(dir, "missing.json")).Parse()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	m := NewConfigManager(writeFile(t, dir, "bad.json", `{"tracker": {"breakpoints": [320, -1]}}`))
	_, err := m.Load()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Nil(t, m.Get())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Default()))
	assert.ErrorIs(t, Validate(nil), ErrInvalid)

	cases := map[string]*Config{
		"empty breakpoints": {Tracker: TrackerConfig{Breakpoints: []int{}}},
		"bad debounce":      {Tracker: TrackerConfig{Debounce: "soon"}},
		"negative frame":    {Tracker: TrackerConfig{FrameInterval: "-1ms"}},
		"bad cron":          {Tracker: TrackerConfig{Announce: "every minute"}},
		"bad severity":      {Tracker: TrackerConfig{Severity: "loud"}},
		"bad level":         {Logging: LoggingConfig{Level: "verbose"}},
		"bad dismiss":       {Notifier: &NotifierConfig{DismissAfter: "4"}},
		"negative workers":  {Notifier: &NotifierConfig{Workers: -1}},
		"unknown driver":    {Storage: &StorageConfig{Driver: "redis", Path: "x"}},
		"missing path":      {Storage: &StorageConfig{Driver: "file"}},
		"bad inspect addr":  {Inspect: &InspectConfig{Enabled: true, Addr: "6061"}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(cfg), ErrInvalid)
		})
	}

	ok := &Config{
		Tracker:  TrackerConfig{Breakpoints: []int{640, 320, 320}, Announce: "*/5 * * * *", Severity: "Warning"},
		Storage:  &StorageConfig{Driver: "none"},
		Notifier: &NotifierConfig{Enabled: false},
	}
	assert.NoError(t, Validate(ok))
}

func TestValidateReportsFieldPaths(t *testing.T) {
	err := Validate(&Config{Tracker: TrackerConfig{CellWidth: -2, Debounce: "fast"}})
	require.ErrorIs(t, err, ErrInvalid)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, []string{"tracker.debounce", "tracker.cell_width"}, fe.Path)
	assert.ErrorContains(t, err, "tracker.cell_width: must be >= 0 (got -2)")
	assert.ErrorContains(t, err, "tracker.debounce: time: invalid duration")
}

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode(FormatYAML, nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)

	cfg, err = Decode(FormatYAML, []byte("base: &b [320, 640]\ntracker:\n  breakpoints: *b\n"))
	assert.ErrorContains(t, err, `unknown field "base"`)
	assert.Nil(t, cfg)

	_, err = Decode(FormatYAML, []byte("tracker:\n  ? [a, b]\n  : 1\n"))
	assert.ErrorContains(t, err, "yaml line 2: mapping key must be a scalar")

	assert.Equal(t, FormatYAML, FormatOf("a/b.YML"))
	assert.Equal(t, FormatJSON, FormatOf("a/b.conf"))
}

func TestExampleConfigIsValid(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("..", "..", "configs", "mediatrack.example.yaml"))
	require.NoError(t, err)
	cfg, err := Decode(FormatYAML, b)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "@every 1m", cfg.Tracker.Announce)
	require.NotNil(t, cfg.Inspect)
	assert.Equal(t, "127.0.0.1:6061", cfg.Inspect.Addr)
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("x", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseDurationField("x", " 250ms ")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = ParseDurationField("x", "-1s")
	assert.ErrorContains(t, err, "x: duration must be >= 0")

	d, err = ParseDurationOrDefault("x", "0s", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestSummarizeConfigChange(t *testing.T) {
	old := Default()
	next := Default()

	changed, _ := SummarizeConfigChange(old, next)
	assert.Empty(t, changed)

	next.Tracker.Breakpoints = []int{320, 640}
	next.Logging.Level = "debug"
	next.Storage = &StorageConfig{Driver: "file", Path: "./state"}
	next.Inspect = &InspectConfig{Enabled: true}
	changed, attrs := SummarizeConfigChange(old, next)
	assert.Equal(t, []string{"inspect", "logging", "storage", "tracker"}, changed)
	assert.NotEmpty(t, attrs)

	// Omitted notifier equals an explicit enabled default.
	old.Notifier = nil
	changed, _ = SummarizeConfigChange(old, Default())
	assert.Empty(t, changed)
}

func TestWatchPublishesValidReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"tracker": {"breakpoints": [320]}}`)

	m := NewConfigManager(path)
	m.debounce = 10 * time.Millisecond
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// The watcher may not be registered yet, so keep rewriting until the
	// reload lands.
	var got *Config
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(`{"tracker": {"breakpoints": [320, 480]}}`), 0o600)
		select {
		case got = <-ch:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{320, 480}, got.Tracker.Breakpoints)
	assert.Equal(t, []int{320, 480}, m.Get().Tracker.Breakpoints)

	// Invalid content is rejected and the committed config stays.
	require.NoError(t, os.WriteFile(path, []byte(`{"tracker": {"breakpoints": [-5]}}`), 0o600))
	select {
	case cfg := <-ch:
		t.Fatalf("invalid config published: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, []int{320, 480}, m.Get().Tracker.Breakpoints)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestCustomValidatorGatesReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{}`)

	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(context.Context, *Config) error { return assert.AnError })

	ch := m.Subscribe(1)
	require.NoError(t, os.WriteFile(path, []byte(`{"logging": {"level": "warn"}}`), 0o600))
	m.reload(context.Background())

	select {
	case <-ch:
		t.Fatal("rejected config was published")
	default:
	}
	assert.Empty(t, m.Get().Logging.Level)

	m.SetValidator(nil)
	m.reload(context.Background())
	require.Len(t, ch, 1)
	assert.Equal(t, "warn", (<-ch).Logging.Level)
}
