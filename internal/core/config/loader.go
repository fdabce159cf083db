package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/dbwatch/internal/polling/backoff"
)

var validate = validator.New()

// noSiteChecks disables site checks, kept for configs ported from the
// INI based agent.
const noSiteChecks = "NONE"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg, path)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, describe(err))
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig, path string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if cfg.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Hostname = h
		}
	}
	if cfg.Database.Role == "" {
		cfg.Database.Role = "normal"
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 30 * time.Second
	}

	var sites []string
	for _, s := range cfg.Checks.SiteChecks {
		s = strings.TrimSpace(s)
		if s != "" && s != noSiteChecks {
			sites = append(sites, s)
		}
	}
	cfg.Checks.SiteChecks = sites

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.File == "" {
		cfg.Output.File = base + ".zbx"
	}
	if cfg.Output.KeyPrefix == "" {
		cfg.Output.KeyPrefix = base
	}

	if cfg.Transport.Method == "" {
		cfg.Transport.Method = "none"
	}
	if cfg.Transport.Redis.List == "" {
		cfg.Transport.Redis.List = base
	}

	if cfg.Schedule.Period == 0 {
		cfg.Schedule.Period = 60 * time.Second
	}
	if cfg.Schedule.StatsEvery == 0 {
		cfg.Schedule.StatsEvery = time.Hour
	}

	def := backoff.DefaultConfig()
	if cfg.Backoff.InitialDelay == 0 {
		cfg.Backoff.InitialDelay = def.InitialDelay
	}
	if cfg.Backoff.Step == 0 {
		cfg.Backoff.Step = def.Step
	}
	if cfg.Backoff.Every == 0 {
		cfg.Backoff.Every = def.Every
	}
	if cfg.Backoff.MaxDelay == 0 {
		cfg.Backoff.MaxDelay = def.MaxDelay
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// describe flattens validator errors into one line naming each field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// OutputPath returns the full path of the metric output file.
func (c *AppConfig) OutputPath() string {
	return filepath.Join(c.Output.Dir, c.Output.File)
}
