package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT"`
	DiscordToken   string `env:"DISCORD_TOKEN"`
	DiscordGuildID string `env:"DISCORD_GUILD_ID"`
	Term           string `env:"UCLA_TERM" envDefault:"26W"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"classtracker.sqlite"`

	PollIntervalMins  int `env:"POLL_INTERVAL_MINUTES" envDefault:"5"`
	ScrapeTimeoutSecs int `env:"SCRAPE_TIMEOUT_SECS" envDefault:"30"`

	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`

	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		Sender      string `env:"MAILGUN_SENDER"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) (*Config, error) {
	// A missing .env file is fine; real deployments set env vars directly.
	godotenv.Load()

	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN envvar must be populated")
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		cfg.log.Sugar().Info("BASIC_AUTH_CREDS not set, API auth will be disabled")
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalMins) * time.Minute
}

func (cfg *Config) ScrapeTimeout() time.Duration {
	return time.Duration(cfg.ScrapeTimeoutSecs) * time.Second
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, nil
	}

	result := make(map[string]string)
	for _, cred := range strings.Split(cfg.BasicAuthCreds, ",") {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}
	return result, nil
}
