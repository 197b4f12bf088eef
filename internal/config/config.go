package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const EnvConfigPath = "VIGIL_CONFIG"

type (
	Config struct {
		App       App       `yaml:"app"`
		Storage   Storage   `yaml:"storage"`
		Scheduler Scheduler `yaml:"scheduler"`
		Audio     Audio     `yaml:"audio"`
		Relay     Relay     `yaml:"relay"`
		Log       Log       `yaml:"log"`
		Sync      Sync      `yaml:"sync"`
	}

	App struct {
		Env string `yaml:"env" env:"VIGIL_ENV" env-default:"local"`
		// ContextID owns trigger claims. Concurrent primaries on one database
		// need distinct values.
		ContextID string `yaml:"context_id" env:"VIGIL_CONTEXT_ID" env-default:"primary"`
	}

	Storage struct {
		Path string `yaml:"path" env:"VIGIL_DB_PATH" env-default:"vigil.db"`
	}

	Scheduler struct {
		PollInterval time.Duration `yaml:"poll_interval" env:"VIGIL_POLL_INTERVAL" env-default:"20s"`
		Tolerance    time.Duration `yaml:"tolerance"     env:"VIGIL_TOLERANCE"     env-default:"2s"`
		EventBuffer  int           `yaml:"event_buffer"  env:"VIGIL_EVENT_BUFFER"  env-default:"64"`
		ClaimTTL     time.Duration `yaml:"claim_ttl"     env:"VIGIL_CLAIM_TTL"     env-default:"168h"`
	}

	Audio struct {
		Enabled        bool          `yaml:"enabled"         env:"VIGIL_AUDIO"           env-default:"true"`
		SampleRate     int           `yaml:"sample_rate"     env:"VIGIL_SAMPLE_RATE"     env-default:"44100"`
		Gap            time.Duration `yaml:"gap"             env:"VIGIL_AUDIO_GAP"       env-default:"1500ms"`
		RampStep       time.Duration `yaml:"ramp_step"       env:"VIGIL_RAMP_STEP"       env-default:"100ms"`
		HapticInterval time.Duration `yaml:"haptic_interval" env:"VIGIL_HAPTIC_INTERVAL" env-default:"2s"`
	}

	Relay struct {
		Enabled              bool          `yaml:"enabled"               env:"VIGIL_RELAY"                 env-default:"true"`
		WakeInterval         time.Duration `yaml:"wake_interval"         env:"VIGIL_RELAY_WAKE"            env-default:"5m"`
		DesktopNotifications bool          `yaml:"desktop_notifications" env:"VIGIL_DESKTOP_NOTIFICATIONS" env-default:"false"`
		Mailbox              int           `yaml:"mailbox"               env:"VIGIL_RELAY_MAILBOX"         env-default:"16"`
	}

	Log struct {
		Level string `yaml:"level" env:"VIGIL_LOG_LEVEL" env-default:"info"`
		// File receives logs while the terminal UI owns stdout.
		File string `yaml:"file" env:"VIGIL_LOG_FILE" env-default:"vigil.log"`
	}

	Sync struct {
		User string `yaml:"user" env:"VIGIL_SYNC_USER"`
		Dir  string `yaml:"dir"  env:"VIGIL_SYNC_DIR"`
	}
)

// Load reads path when given, or the file named by VIGIL_CONFIG, and layers
// environment overrides on top. With neither, defaults and env apply.
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no overrides.
func Default() Config {
	return Config{
		App:       App{Env: "local", ContextID: "primary"},
		Storage:   Storage{Path: "vigil.db"},
		Scheduler: Scheduler{PollInterval: 20 * time.Second, Tolerance: 2 * time.Second, EventBuffer: 64, ClaimTTL: 7 * 24 * time.Hour},
		Audio:     Audio{Enabled: true, SampleRate: 44100, Gap: 1500 * time.Millisecond, RampStep: 100 * time.Millisecond, HapticInterval: 2 * time.Second},
		Relay:     Relay{Enabled: true, WakeInterval: 5 * time.Minute, Mailbox: 16},
		Log:       Log{Level: "info", File: "vigil.log"},
	}
}

var ErrInvalidConfig = errors.New("config: invalid")

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.App.ContextID) == "" {
		problems = append(problems, "app.context_id is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		problems = append(problems, "storage.path is required")
	}
	if c.Scheduler.PollInterval < time.Second {
		problems = append(problems, "scheduler.poll_interval must be at least 1s")
	}
	if c.Scheduler.Tolerance < 0 || c.Scheduler.Tolerance >= c.Scheduler.PollInterval {
		problems = append(problems, "scheduler.tolerance must be within [0, poll_interval)")
	}
	if c.Scheduler.EventBuffer <= 0 {
		problems = append(problems, "scheduler.event_buffer must be positive")
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		problems = append(problems, "audio.sample_rate must be within [8000, 192000]")
	}
	if c.Audio.Gap < 0 || c.Audio.RampStep <= 0 || c.Audio.HapticInterval <= 0 {
		problems = append(problems, "audio timings must be positive")
	}
	if c.Relay.WakeInterval < time.Second || c.Relay.Mailbox <= 0 {
		problems = append(problems, "relay.wake_interval must be at least 1s and relay.mailbox positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
