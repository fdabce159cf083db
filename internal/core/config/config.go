package config

import (
	"time"

	"github.com/vietddude/dbwatch/internal/core/domain"
	redisclient "github.com/vietddude/dbwatch/internal/infra/redis"
	"github.com/vietddude/dbwatch/internal/polling/backoff"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Hostname  string          `yaml:"hostname"  validate:"required"`
	Database  DatabaseConfig  `yaml:"database"`
	Checks    ChecksConfig    `yaml:"checks"`
	Output    OutputConfig    `yaml:"output"`
	Transport TransportConfig `yaml:"transport"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Backoff   backoff.Config  `yaml:"backoff"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig identifies the monitored database.
type DatabaseConfig struct {
	Type           string        `yaml:"type"            validate:"required,oneof=postgres oracle"`
	Driver         string        `yaml:"driver"          validate:"required,oneof=pgx postgres oracle"`
	URL            string        `yaml:"url"             validate:"required"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Role           string        `yaml:"role"            validate:"omitempty,oneof=normal sysdba sysasm sysoper"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
}

// Credentials returns the connect inputs for the database.
func (d DatabaseConfig) Credentials() domain.Credentials {
	return domain.Credentials{
		Driver:   d.Driver,
		URL:      d.URL,
		Username: d.Username,
		Password: d.Password,
		Role:     d.Role,
	}
}

// ChecksConfig locates check files.
type ChecksConfig struct {
	Dir        string   `yaml:"dir"         validate:"required"`
	SiteChecks []string `yaml:"site_checks"`
}

// OutputConfig controls the metric output file.
type OutputConfig struct {
	Dir       string `yaml:"dir"        validate:"required"`
	File      string `yaml:"file"` // defaults to <config basename>.zbx
	KeyPrefix string `yaml:"key_prefix" validate:"required"`
}

// TransportConfig selects how output files leave the host.
type TransportConfig struct {
	Method string             `yaml:"method" validate:"oneof=zabbix_sender redis none"`
	Args   string             `yaml:"args"   validate:"required_if=Method zabbix_sender"`
	Redis  redisclient.Config `yaml:"redis"`
}

// ScheduleConfig controls cycle timing.
type ScheduleConfig struct {
	Period     time.Duration `yaml:"period"      validate:"gt=0"`
	StatsEvery time.Duration `yaml:"stats_every" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"` // 0 disables the server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"` // directory for rotated log files, empty for stderr only
}
