package config

// DBConfig contains PostgreSQL configuration for the user directory.
// ReplicaHost is optional; when unset, primary and replica reads share one
// pool and the lag-retry path degenerates to a plain second read.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"ssohub"`
	Password string `env:"PASSWORD" envDefault:"ssohub"`
	Name     string `env:"NAME"     envDefault:"ssohub"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	ReplicaHost string `env:"REPLICA_HOST" envDefault:""`
	ReplicaPort int    `env:"REPLICA_PORT" envDefault:"5432"`

	// RunMigrationsOnStart controls whether the application automatically
	// applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// HasReplica reports whether a separate replica endpoint is configured.
func (c DBConfig) HasReplica() bool { return c.ReplicaHost != "" }

// RedisConfig contains Redis configuration for the token and session stores.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
