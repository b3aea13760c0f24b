package config

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dbt-cloudrun/utils"
)

// Runner backends understood by services.NewDbtRunner
const (
	RunnerExec       = "exec"
	RunnerKubernetes = "kubernetes"
)

// Config describes all configuration options. Every field maps to exactly one
// environment variable so that platform-provided names like PORT keep working.
type Config struct {
	Port      string `env:"PORT" default:"8080" usage:"Port to listen on"`
	GinMode   string `env:"GIN_MODE" default:"release" usage:"Gin mode (debug, release or test)"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json" usage:"json for Cloud Logging, console for local development"`

	Runner      string        `env:"DBT_RUNNER" default:"exec" usage:"Where dbt runs: exec or kubernetes"`
	Binary      string        `env:"DBT_BINARY" default:"dbt" usage:"dbt executable used by the exec runner"`
	WorkDir     string        `env:"DBT_WORKDIR" usage:"Working directory of the exec runner, empty means the service's own"`
	ProjectDir  string        `env:"DBT_PROJECT_DIR" default:"dbt"`
	ProfilesDir string        `env:"DBT_PROFILES_DIR" default:"dbt"`
	Timeout     time.Duration `env:"DBT_TIMEOUT" default:"0s" usage:"Timeout for a whole run, 0 disables it"`

	JobNamespace      string        `env:"DBT_JOB_NAMESPACE" default:"dbt-runs"`
	JobImage          string        `env:"DBT_JOB_IMAGE" usage:"Image with dbt as entrypoint, required for the kubernetes runner"`
	JobDeadline       time.Duration `env:"DBT_JOB_DEADLINE" default:"1h"`
	JobServiceAccount string        `env:"DBT_JOB_SERVICE_ACCOUNT"`
	JobEnvSecret      string        `env:"DBT_JOB_ENV_SECRET" usage:"Secret whose keys are exposed to the dbt job as environment variables"`
	K8sProxyURL       string        `env:"K8S_PROXY_URL" usage:"kubectl proxy URL, in-cluster config is used when empty"`

	APIKeyHash         string   `env:"API_KEY_HASH" usage:"bcrypt hash of the X-API-Key accepted on /daily"`
	JWTSecret          string   `env:"JWT_SECRET" usage:"HS256 secret for bearer tokens accepted on /daily"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	GoogleCloudProject string `env:"GOOGLE_CLOUD_PROJECT"`
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// LoadEnv loads environment variables from .env file
func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Debug().Msg(".env file not found, using system environment variables")
	}
}

// GetEnv gets an environment variable or returns a default value if not present
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Loader initializes an empty config object and returns a new Loader for this object
func Loader() (*Config, *aconfig.Loader) {
	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:          true,
		AllowUnknownEnvs:   true,
		AllowUnknownFields: true,
		Files:              []string{"dbt-runner.toml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads defaults, the optional config file and the environment, then validates the result
func Load() (*Config, error) {
	cfg, loader := Loader()
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if cfg.Port == "" {
		return eris.New("PORT must not be empty")
	}

	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return eris.Errorf("invalid value for LOG_LEVEL: %s", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "json", "console":
	default:
		return eris.Errorf("invalid value for LOG_FORMAT: %s (must be json or console)", cfg.LogFormat)
	}

	if cfg.Timeout < 0 {
		return eris.Errorf("invalid value for DBT_TIMEOUT: %s", cfg.Timeout)
	}

	switch cfg.Runner {
	case RunnerExec:
		if cfg.Binary == "" {
			return eris.New("DBT_BINARY must not be empty for the exec runner")
		}
	case RunnerKubernetes:
		if cfg.JobImage == "" {
			return eris.New("DBT_JOB_IMAGE is required for the kubernetes runner")
		}
		if !utils.IsValidKubernetesName(cfg.JobNamespace) {
			return eris.Errorf("invalid value for DBT_JOB_NAMESPACE: %q", cfg.JobNamespace)
		}
	default:
		return eris.Errorf("invalid value for DBT_RUNNER: %s (must be %s or %s)", cfg.Runner, RunnerExec, RunnerKubernetes)
	}

	return nil
}

// LogLevelValue converts the LogLevel field to a zerolog.Level
func (cfg *Config) LogLevelValue() zerolog.Level {
	return logLevels[cfg.LogLevel]
}

// AuthEnabled reports whether /daily requires an API key or bearer token
func (cfg *Config) AuthEnabled() bool {
	return cfg.APIKeyHash != "" || cfg.JWTSecret != ""
}
