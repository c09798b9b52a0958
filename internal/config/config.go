package config

import "time"

type Config struct {
	Service  *ServiceConfig
	Postgres *PostgresConfig
	Redis    *RedisConfig
	Logger   *LoggerConfig
	Tracer   *TracerConfig
	Worker   *WorkerConfig
	Auth     *AuthConfig
	Chat     *ChatConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}

type WorkerConfig struct {
	SystemGroup string
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type ChatConfig struct {
	// WithdrawWindow is how long after creation the sender may still
	// withdraw a message.
	WithdrawWindow time.Duration
	// HeartbeatInterval drives the presence refresh of connected clients;
	// PresenceTTL is the staleness threshold for the online set.
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
}
