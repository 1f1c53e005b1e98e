package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Engine controls catalog loading and batch evaluation.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`
	Worker     WorkerConfig     `json:"worker" yaml:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds

	// AllowedOrigins restricts CORS; empty allows any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins"`
}

// EngineConfig holds rule catalog and evaluation settings.
type EngineConfig struct {
	// RulesFile is an optional YAML file of CEL rule definitions appended
	// to the built-in catalog at startup.
	RulesFile string `json:"rulesFile" yaml:"rulesFile"`

	// LoadStoredDefinitions appends enabled definitions from the repository.
	LoadStoredDefinitions bool `json:"loadStoredDefinitions" yaml:"loadStoredDefinitions"`

	// BatchConcurrency caps concurrent evaluations in a batch request.
	BatchConcurrency int `json:"batchConcurrency" yaml:"batchConcurrency"`

	// MaxBatchSize caps the number of suppliers in a batch request.
	MaxBatchSize int `json:"maxBatchSize" yaml:"maxBatchSize"`
}

// WorkerConfig holds settings for the asynchronous submission worker.
type WorkerConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	WorkerCount int  `json:"workerCount" yaml:"workerCount"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// DefaultConfig returns the single-node configuration: SQLite storage,
// in-process event bus, built-in rule catalog.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Engine: EngineConfig{
			LoadStoredDefinitions: true,
			BatchConcurrency:      8,
			MaxBatchSize:          500,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Worker: WorkerConfig{
			Enabled:     false,
			WorkerCount: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
