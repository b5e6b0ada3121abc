package configx

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetServerConfig() *ServerConfig
	GetLoggingConfig() *LoggingConfig
	GetDatabaseConfig() *DatabaseConfig
	GetAuditConfig() *AuditConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "dbfunc"
environment: "development"
version: "1.0"
logging:
  level: "debug"
server:
  port: "8080"
  concurrency: 10
  disableStartupMsg: false
database:
  dsn: "postgres://localhost:5432/main-db"
  user: "postgres"
  password: "password"
  homogeneous: true
  threaded: true
  minConn: 1
  maxConn: 10
audit:
  enabled: true
  project: test-project
  topic: ledger-audit
*/
type BaseConfig struct {
	Name        string          `mapstructure:"name"`
	Environment string          `mapstructure:"environment"`
	Version     string          `mapstructure:"version"`
	Logging     *LoggingConfig  `mapstructure:"logging"`
	Server      *ServerConfig   `mapstructure:"server"`
	Database    *DatabaseConfig `mapstructure:"database"`
	Audit       *AuditConfig    `mapstructure:"audit"`
}

type ServerConfig struct {
	Port                  string `mapstructure:"port"`
	Concurrency           int    `mapstructure:"concurrency"`
	DisableStartupMessage bool   `mapstructure:"disableStartupMsg"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig - connection pool settings, see dbx.PoolConfig.
type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Homogeneous bool   `mapstructure:"homogeneous"`
	Threaded    bool   `mapstructure:"threaded"`
	MinConn     int32  `mapstructure:"minConn"`
	MaxConn     int32  `mapstructure:"maxConn"`
}

// AuditConfig - Pub/Sub sink for committed ledger transactions.
type AuditConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectId string `mapstructure:"project"`
	Topic     string `mapstructure:"topic"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(cfg.Environment)
}

func (cfg BaseConfig) GetServerConfig() *ServerConfig {
	return cfg.Server
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	return cfg.Logging
}

func (cfg BaseConfig) GetDatabaseConfig() *DatabaseConfig {
	return cfg.Database
}

func (cfg BaseConfig) GetAuditConfig() *AuditConfig {
	return cfg.Audit
}
