package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Session struct {
		TickRate      int           `koanf:"tick_rate"`
		MaxPrediction int           `koanf:"max_prediction"`
		Timeout       time.Duration `koanf:"timeout"`
	} `koanf:"session"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
	)
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
}

func TestLoader_Load_FileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.yaml")
	content := "session:\n  tick_rate: 90\n  timeout: 250ms\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var cfg testConfig
	cfg.Session.MaxPrediction = 8
	cfg.Log.Level = "info"

	l := NewLoader(WithConfigFile(path), WithEnvPrefix("GNTEST_FILE_"))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Session.TickRate != 90 {
		t.Errorf("TickRate = %d, want 90", cfg.Session.TickRate)
	}
	if cfg.Session.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v, want 250ms", cfg.Session.Timeout)
	}
	if cfg.Session.MaxPrediction != 8 {
		t.Errorf("MaxPrediction = %d, want default 8", cfg.Session.MaxPrediction)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default info", cfg.Log.Level)
	}
}

func TestLoader_Load_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.yaml")
	if err := os.WriteFile(path, []byte("session:\n  max_prediction: 8\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("GNTEST_ENV_SESSION__MAX_PREDICTION", "4")
	t.Setenv("GNTEST_ENV_LOG__LEVEL", "debug")

	var cfg testConfig
	l := NewLoader(WithConfigFile(path), WithEnvPrefix("GNTEST_ENV_"))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Session.MaxPrediction != 4 {
		t.Errorf("MaxPrediction = %d, want 4 from env", cfg.Session.MaxPrediction)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug from env", cfg.Log.Level)
	}
	if got := l.String("log.level"); got != "debug" {
		t.Errorf("String(log.level) = %q, want debug", got)
	}
}

func TestLoader_Load_OverridesWin(t *testing.T) {
	t.Setenv("GNTEST_OVR_SESSION__TICK_RATE", "30")

	var cfg testConfig
	l := NewLoader(
		WithEnvPrefix("GNTEST_OVR_"),
		WithOverrides(map[string]any{"session.tick_rate": 120}),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.TickRate != 120 {
		t.Errorf("TickRate = %d, want 120 from overrides", cfg.Session.TickRate)
	}
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "none", pairs: nil, want: nil},
		{name: "pairs", pairs: []string{"session.tick_rate=30", "peer.host=true", "log.level="},
			want: map[string]any{"session.tick_rate": "30", "peer.host": "true", "log.level": ""}},
		{name: "missing equals", pairs: []string{"session.tick_rate"}, wantErr: true},
		{name: "empty key", pairs: []string{"=1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOverrides(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOverrides() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseOverrides() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ParseOverrides()[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestLoader_Load_StringOverrides(t *testing.T) {
	overrides, err := ParseOverrides([]string{"session.tick_rate=45", "session.timeout=2s"})
	if err != nil {
		t.Fatalf("ParseOverrides() error = %v", err)
	}
	var cfg testConfig
	if err := NewLoader(WithEnvPrefix("GNTEST_STR_"), WithOverrides(overrides)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.TickRate != 45 || cfg.Session.Timeout != 2*time.Second {
		t.Errorf("Load() = %+v, want tick_rate 45 and timeout 2s", cfg.Session)
	}
}

func TestLoader_LoadFile_Missing(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() error = nil, want error for missing file")
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v, want nil", err)
	}
}

func TestMapProvider(t *testing.T) {
	m := mapProvider{"a.b": 1, "c": "x"}

	if _, err := m.ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() error = %v, want ErrReadBytesNotSupported", err)
	}

	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	nested, ok := got["a"].(map[string]any)
	if !ok || nested["b"] != 1 {
		t.Errorf("Read()[a] = %v, want map with b=1", got["a"])
	}
	if got["c"] != "x" {
		t.Errorf("Read()[c] = %v, want x", got["c"])
	}
}
