package config

import (
	"time"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Assets   AssetsConfig   `yaml:"assets"`
	Session  SessionConfig  `yaml:"session"`
	Reports  ReportsConfig  `yaml:"reports"`
	Audio    AudioConfig    `yaml:"audio"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// Proxies (CIDR or address) whose X-Forwarded-For and X-Real-IP are believed
	TrustedProxies []string `yaml:"trusted_proxies" env:"SERVER_TRUSTED_PROXIES" env-separator:","`
}

// DatabaseConfig selects the SQL backend (sqlite, postgres, mysql)
type DatabaseConfig struct {
	Type string `yaml:"type" env:"DB_TYPE" env-default:"sqlite"`
	Path string `yaml:"path" env:"DB_PATH" env-default:"./dictation.db"`
	URL  string `yaml:"url"  env:"DATABASE_URL"`

	// Pool settings; zero leaves the database/sql default
	MaxOpenConns    int           `yaml:"max_open_conns"    env:"DB_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"    env:"DB_MAX_IDLE_CONNS"    env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

// AssetsConfig locates word lists and pronunciation clips.
// With neither Dir nor BaseURL set, the embedded word lists are used.
type AssetsConfig struct {
	Dir       string `yaml:"dir"        env:"ASSETS_DIR"`
	BaseURL   string `yaml:"base_url"   env:"ASSETS_BASE_URL"`
	AudioRoot string `yaml:"audio_root" env:"AUDIO_ROOT"  env-default:"/audio_files"`
	AudioDir  string `yaml:"audio_dir"  env:"AUDIO_DIR"   env-default:"./static/audio_files"`
}

// SessionConfig controls word session tokens and expiry
type SessionConfig struct {
	Secret   string        `yaml:"secret"   env:"SESSION_SECRET" env-required:"true"`
	Duration time.Duration `yaml:"duration" env:"SESSION_DURATION" env-default:"24h"`
	Issuer   string        `yaml:"issuer"   env:"SESSION_ISSUER"   env-default:"dictation"`
}

// ReportsConfig controls feedback report intake
type ReportsConfig struct {
	RateLimit  int           `yaml:"rate_limit"  env:"REPORTS_RATE_LIMIT"  env-default:"5"`
	RateWindow time.Duration `yaml:"rate_window" env:"REPORTS_RATE_WINDOW" env-default:"10m"`
	IPHashKey  string        `yaml:"ip_hash_key" env:"REPORTS_IP_HASH_KEY"`
}

// AudioConfig selects the playback backend for server-side sessions.
// An empty Command keeps sessions silent.
type AudioConfig struct {
	Command    string `yaml:"command"     env:"AUDIO_COMMAND"`
	CorrectCue string `yaml:"correct_cue" env:"AUDIO_CORRECT_CUE" env-default:"/website_sounds/correct-sound.wav"`
	WrongCue   string `yaml:"wrong_cue"   env:"AUDIO_WRONG_CUE"   env-default:"/website_sounds/wrong-sound.mp3"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
