package config

import "time"

// Recognized configuration keys.
const (
	KeyAnalyticsEnabled   = "ENABLE_RECOGNITION_ANALYTICS"
	KeyAnalyticsDB        = "RECOGNITION_ANALYTICS_DB"
	KeyPreProcessors      = "RECOGNITION_PREPROCESSORS"
	KeyPostProcessors     = "RECOGNITION_POSTPROCESSORS"
	KeyLowConfidence      = "RECOGNITION_LOW_CONFIDENCE"
	KeyRecognitionTimeout = "RECOGNITION_TIMEOUT"

	KeyOpenAIAPIKey  = "OPENAI_API_KEY"
	KeyOpenAIModel   = "OPENAI_MODEL"
	KeyOpenAIBaseURL = "OPENAI_BASE_URL"

	KeyAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	KeyAnthropicModel   = "ANTHROPIC_MODEL"
	KeyAnthropicBaseURL = "ANTHROPIC_BASE_URL"

	KeyWorkers         = "ENGINE_WORKERS"
	KeyActionTimeout   = "ACTION_TIMEOUT"
	KeySessionStore    = "SESSION_STORE"
	KeySessionTTL      = "SESSION_TTL"
	KeySessionLock     = "SESSION_DISTRIBUTED_LOCK"
	KeyRedisAddr       = "REDIS_ADDR"
	KeyRedisPassword   = "REDIS_PASSWORD"
	KeyRedisDB         = "REDIS_DB"
	KeyRedisPrefix     = "REDIS_PREFIX"
	KeyBoltPath        = "BOLT_PATH"
	KeySessionDir      = "SESSION_DIR"
	KeyEncryptionKey   = "SESSION_ENCRYPTION_KEY"
	KeyFallbackKeys    = "SESSION_ENCRYPTION_FALLBACK_KEYS"
	KeyPIIKeys         = "SESSION_PII_KEYS"
	KeyLockTTL         = "SESSION_LOCK_TTL"
	KeyScriptTimeout   = "SCRIPT_TIMEOUT"
	KeyShutdownTimeout = "SHUTDOWN_TIMEOUT"
	KeyMaxInputSize    = "INPUT_MAX_SIZE"
)

// RecognitionSettings drives the provider factory.
type RecognitionSettings struct {
	AnalyticsEnabled bool          `mapstructure:"ENABLE_RECOGNITION_ANALYTICS"`
	AnalyticsDB      string        `mapstructure:"RECOGNITION_ANALYTICS_DB"`
	PreProcessors    []string      `mapstructure:"RECOGNITION_PREPROCESSORS"`
	PostProcessors   []string      `mapstructure:"RECOGNITION_POSTPROCESSORS"`
	LowConfidence    float64       `mapstructure:"RECOGNITION_LOW_CONFIDENCE"`
	Timeout          time.Duration `mapstructure:"RECOGNITION_TIMEOUT"`

	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL"`

	AnthropicAPIKey  string `mapstructure:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `mapstructure:"ANTHROPIC_MODEL"`
	AnthropicBaseURL string `mapstructure:"ANTHROPIC_BASE_URL"`
}

// EngineSettings drives the dispatch engine and session persistence.
type EngineSettings struct {
	Workers         int           `mapstructure:"ENGINE_WORKERS"`
	ActionTimeout   time.Duration `mapstructure:"ACTION_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	ScriptTimeout   time.Duration `mapstructure:"SCRIPT_TIMEOUT"`
	MaxInputSize    int           `mapstructure:"INPUT_MAX_SIZE"`

	SessionStore    string        `mapstructure:"SESSION_STORE"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	DistributedLock bool          `mapstructure:"SESSION_DISTRIBUTED_LOCK"`
	LockTTL         time.Duration `mapstructure:"SESSION_LOCK_TTL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	BoltPath   string `mapstructure:"BOLT_PATH"`
	SessionDir string `mapstructure:"SESSION_DIR"`

	// EncryptionKey is a base64 AES-256 key. Snapshots are sealed when set.
	EncryptionKey  string   `mapstructure:"SESSION_ENCRYPTION_KEY"`
	FallbackKeys   []string `mapstructure:"SESSION_ENCRYPTION_FALLBACK_KEYS"`
	PIIKeyPatterns []string `mapstructure:"SESSION_PII_KEYS"`
}

// DefaultRecognitionSettings returns the settings used for absent keys.
func DefaultRecognitionSettings() RecognitionSettings {
	return RecognitionSettings{
		AnalyticsEnabled: true,
		LowConfidence:    0.3,
		Timeout:          10 * time.Second,
	}
}

// DefaultEngineSettings returns the settings used for absent keys.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		Workers:         8,
		ActionTimeout:   30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		ScriptTimeout:   2 * time.Second,
		MaxInputSize:    4096,
		SessionStore:    "memory",
		LockTTL:         30 * time.Second,
		RedisAddr:       "localhost:6379",
		RedisPrefix:     "colloquy:session:",
		BoltPath:        "colloquy.db",
	}
}

// Recognition decodes the recognition settings over their defaults.
func (c *Config) Recognition() (RecognitionSettings, error) {
	s := DefaultRecognitionSettings()
	if c == nil {
		return s, nil
	}
	err := c.Decode(&s)
	return s, err
}

// Engine decodes the engine settings over their defaults.
func (c *Config) Engine() (EngineSettings, error) {
	s := DefaultEngineSettings()
	if c == nil {
		return s, nil
	}
	err := c.Decode(&s)
	return s, err
}
