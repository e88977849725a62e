package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSES     = "ses"
	DriverCamunda = "camunda"
	DriverLog     = "log"

	AuthModeKeycloak = "keycloak"
	AuthModeHeader   = "header"
)

// Load reads config.yaml (and config.<APP_ENVIRONMENT>.yaml) from the usual
// locations, overlays the environment and validates the result.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // the environment overlay is optional

	return finish(v)
}

// LoadFromFile reads a single YAML file, still honouring environment overrides.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindEnvKeys registers the keys AutomaticEnv cannot discover when no file mentions them.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"http.port",
		"catalog.elasticsearch.url",
		"catalog.elasticsearch.username",
		"catalog.elasticsearch.password",
		"database.redis.address",
		"database.postgres.host",
		"auth.mode",
		"auth.keycloak.url",
		"auth.keycloak.realm",
		"auth.keycloak.client_id",
		"auth.keycloak.client_secret",
		"notifications.enabled",
		"notifications.async",
		"notifications.driver",
		"notifications.from_email",
		"integrations.aws.region",
		"camunda.broker_address",
		"logging.level",
		"logging.format",
		"tracing.enabled",
		"tracing.jaeger_endpoint",
	} {
		_ = v.BindEnv(key)
	}
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Auth.Keycloak.ClientSecret == "" {
		if val := os.Getenv("KEYCLOAK_CLIENT_SECRET"); val != "" {
			cfg.Auth.Keycloak.ClientSecret = val
		}
	}
	if cfg.Catalog.Elasticsearch.Password == "" {
		if val := os.Getenv("ELASTIC_PASSWORD"); val != "" {
			cfg.Catalog.Elasticsearch.Password = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "query-gateway"
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.BasePath == "" {
		cfg.HTTP.BasePath = "/search/catalog/internal"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30000
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60000
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 15000
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}

	if len(cfg.Catalog.DefaultSources) == 0 {
		cfg.Catalog.DefaultSources = []string{"catalog"}
	}
	if cfg.Catalog.WorkspaceIndex == "" {
		cfg.Catalog.WorkspaceIndex = "workspaces"
	}
	if cfg.Catalog.FeatureIndex == "" {
		cfg.Catalog.FeatureIndex = "geofeatures"
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 10000
	}
	if cfg.Catalog.MaxPageSize == 0 {
		cfg.Catalog.MaxPageSize = 1000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthModeKeycloak
	}
	if cfg.Auth.IdentityClaim == "" {
		cfg.Auth.IdentityClaim = "email"
	}
	if cfg.Auth.IdentityHeader == "" {
		cfg.Auth.IdentityHeader = "X-Forwarded-User"
	}
	if cfg.Auth.CacheTTL == 0 {
		cfg.Auth.CacheTTL = 60000
	}

	n := &cfg.Notifications
	if n.Workers == 0 {
		n.Workers = 2
	}
	if n.QueueSize == 0 {
		n.QueueSize = 100
	}
	if n.PipelineTimeout == 0 {
		n.PipelineTimeout = 15000
	}
	if n.MailTimeout == 0 {
		n.MailTimeout = 10000
	}
	if n.NotFoundCacheTTL == 0 {
		n.NotFoundCacheTTL = 30000
	}
	if n.Driver == "" {
		n.Driver = DriverSES
	}
	if n.SubjectTemplate == "" {
		n.SubjectTemplate = "New results for workspace {{title}}"
	}
	if n.BodyTemplate == "" {
		n.BodyTemplate = "Your workspace {{title}} has {{count}} new result(s). {{link}}"
	}

	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "us-east-1"
	}
	if cfg.Camunda.MessageName == "" {
		cfg.Camunda.MessageName = "workspace-notification"
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.Catalog.Elasticsearch.GetAddresses()) == 0 {
		return fmt.Errorf("catalog.elasticsearch.addresses or url is required")
	}

	switch cfg.Auth.Mode {
	case AuthModeKeycloak:
		if cfg.Auth.Keycloak.URL == "" || cfg.Auth.Keycloak.Realm == "" {
			return fmt.Errorf("auth.keycloak.url and auth.keycloak.realm are required in keycloak mode")
		}
	case AuthModeHeader:
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeKeycloak, AuthModeHeader, cfg.Auth.Mode)
	}

	switch cfg.Auth.IdentityClaim {
	case "email", "username", "sub":
	default:
		return fmt.Errorf("auth.identity_claim must be email, username or sub, got %q", cfg.Auth.IdentityClaim)
	}

	if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint is required when tracing is enabled")
	}

	if !cfg.Notifications.Enabled {
		return nil
	}

	switch cfg.Notifications.Driver {
	case DriverSES:
		if cfg.Notifications.FromEmail == "" {
			return fmt.Errorf("notifications.from_email is required for the ses driver")
		}
	case DriverCamunda:
		if cfg.Camunda.BrokerAddress == "" {
			return fmt.Errorf("camunda.broker_address is required for the camunda driver")
		}
	case DriverLog:
	default:
		return fmt.Errorf("unknown notifications.driver %q", cfg.Notifications.Driver)
	}

	if cfg.Notifications.Async && cfg.Notifications.QueueSize < 1 {
		return fmt.Errorf("notifications.queue_size must be positive")
	}
	if cfg.Notifications.AuditEnabled && cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required when notifications.audit_enabled is set")
	}
	if cfg.Notifications.CacheTTL > 0 && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when notifications.cache_ttl is set")
	}
	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.topic_arn is required when sns is enabled")
	}
	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
