// Package config loads runtime settings from the environment, with an
// optional dotenv file filling in whatever the environment leaves
// unset. Real environment variables always win over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds everything a sync run needs. Secrets come in through the
// environment only; nothing here is ever logged.
type Config struct {
	MoneyForwardEmail    string `env:"MF_EMAIL"`
	MoneyForwardPassword string `env:"MF_PASSWORD"`
	InstitutionURL       string `env:"MF_IB_INSTITUTION_URL"`

	FlexToken   string `env:"IB_FLEX_TOKEN"`
	FlexQueryID string `env:"IB_FLEX_QUERY_ID"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=true"`
}

// Load reads envFile (if it exists) into the process environment and
// unmarshals the result. A missing file is fine when envFile is the
// default name; an explicitly named file must exist.
func Load(envFile string, explicit bool) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"MF_EMAIL", c.MoneyForwardEmail},
		{"MF_PASSWORD", c.MoneyForwardPassword},
		{"MF_IB_INSTITUTION_URL", c.InstitutionURL},
		{"IB_FLEX_TOKEN", c.FlexToken},
		{"IB_FLEX_QUERY_ID", c.FlexQueryID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
