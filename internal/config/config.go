package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type BattleConf struct {
	MinQuestions     int           `env:"MIN_QUESTIONS"     envDefault:"5"`
	MaxQuestions     int           `env:"MAX_QUESTIONS"     envDefault:"20"`
	DefaultQuestions int           `env:"DEFAULT_QUESTIONS" envDefault:"10"`
	AdvanceDelay     time.Duration `env:"ADVANCE_DELAY"     envDefault:"3s"`
	QuickMatchDelay  time.Duration `env:"QUICK_MATCH_DELAY" envDefault:"2s"`
	CompletedTTL     time.Duration `env:"COMPLETED_TTL"     envDefault:"60s"`
	MaxAge           time.Duration `env:"MAX_AGE"           envDefault:"30m"`
	ReapInterval     time.Duration `env:"REAP_INTERVAL"     envDefault:"5m"`
	ForfeitTimeout   time.Duration `env:"FORFEIT_TIMEOUT"   envDefault:"30s"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT"      envDefault:"5s"`
}

type WebsocketConf struct {
	ReadLimit    int64         `env:"READ_LIMIT"    envDefault:"4096"`
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"15s"`
	RateWindow   time.Duration `env:"RATE_WINDOW"   envDefault:"1s"`
	RateLimit    int           `env:"RATE_LIMIT"    envDefault:"20"`
}

type LogConf struct {
	Level      string `env:"LEVEL"        envDefault:"info"`
	Dir        string `env:"DIR"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB"  envDefault:"50"`
	MaxBackups int    `env:"MAX_BACKUPS"  envDefault:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"14"`
}

type Config struct {
	Addr          string        `env:"ADDR"           envDefault:":8080"`
	Debug         bool          `env:"DEBUG"`
	JWTSecret     string        `env:"JWT_SECRET"`
	QuestionsPath string        `env:"QUESTIONS_PATH"`
	Battle        BattleConf    `envPrefix:"BATTLE_"`
	Websocket     WebsocketConf `envPrefix:"WEBSOCKET_"`
	Log           LogConf       `envPrefix:"LOG_"`
}

// LoadConfig reads an optional dotenv file, then the process environment.
// A missing dotenv file is not an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	b := c.Battle
	if b.MinQuestions <= 0 || b.MaxQuestions < b.MinQuestions {
		return fmt.Errorf("invalid question bounds: min=%d max=%d", b.MinQuestions, b.MaxQuestions)
	}
	if b.DefaultQuestions < b.MinQuestions || b.DefaultQuestions > b.MaxQuestions {
		return fmt.Errorf("default questions %d outside [%d, %d]", b.DefaultQuestions, b.MinQuestions, b.MaxQuestions)
	}
	if b.MaxAge <= 0 || b.ReapInterval <= 0 {
		return errors.New("room max age and reap interval must be positive")
	}
	if b.AdvanceDelay < 0 || b.QuickMatchDelay < 0 || b.CompletedTTL < 0 || b.ForfeitTimeout < 0 {
		return errors.New("battle delays must not be negative")
	}
	if c.Websocket.RateLimit <= 0 || c.Websocket.RateWindow <= 0 {
		return errors.New("websocket rate limit and window must be positive")
	}
	return nil
}
