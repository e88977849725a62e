package config

import "fmt"

type Config struct {
	App           AppConfig          `mapstructure:"app"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Catalog       CatalogConfig      `mapstructure:"catalog"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Integrations  IntegrationConfig  `mapstructure:"integrations"`
	Camunda       CamundaConfig      `mapstructure:"camunda"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Tracing       TracingConfig      `mapstructure:"tracing"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port            int    `mapstructure:"port"`
	BasePath        string `mapstructure:"base_path"`
	ReadTimeout     int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"` // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

type CatalogConfig struct {
	Elasticsearch  ElasticsearchConfig `mapstructure:"elasticsearch"`
	DefaultSources []string            `mapstructure:"default_sources"`
	WorkspaceIndex string              `mapstructure:"workspace_index"`
	FeatureIndex   string              `mapstructure:"feature_index"`
	Timeout        int                 `mapstructure:"timeout"` // milliseconds
	MaxPageSize    int                 `mapstructure:"max_page_size"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single-address shorthand
}

func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig selects how the caller identity is resolved.
// Mode "keycloak" introspects bearer tokens; "header" trusts IdentityHeader (development only).
type AuthConfig struct {
	Mode           string `mapstructure:"mode"`
	IdentityClaim  string `mapstructure:"identity_claim"`
	IdentityHeader string `mapstructure:"identity_header"`
	CacheTTL       int    `mapstructure:"cache_ttl"` // milliseconds

	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

type NotificationConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Async           bool   `mapstructure:"async"`
	Workers         int    `mapstructure:"workers"`
	QueueSize       int    `mapstructure:"queue_size"`
	PipelineTimeout int    `mapstructure:"pipeline_timeout"` // milliseconds
	MailTimeout     int    `mapstructure:"mail_timeout"`     // milliseconds
	Driver          string `mapstructure:"driver"`           // ses, camunda, log
	FromEmail       string `mapstructure:"from_email"`
	SubjectTemplate string `mapstructure:"subject_template"`
	BodyTemplate    string `mapstructure:"body_template"`
	BaseURL         string `mapstructure:"base_url"`
	CacheTTL        int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables the lookup cache
	// NotFoundCacheTTL bounds how long a lookup miss is cached, and so how
	// long a newly subscribed workspace can go unnotified. Capped at CacheTTL.
	NotFoundCacheTTL int  `mapstructure:"not_found_cache_ttl"` // milliseconds
	AuditEnabled     bool `mapstructure:"audit_enabled"`
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MessageName    string `mapstructure:"message_name"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig enables span export to a Jaeger collector,
// e.g. http://jaeger:14268/api/traces.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
