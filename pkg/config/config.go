package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tesorio/saml2auth/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// SAML service-provider configuration
	SAML SAMLConfig

	// Storage configuration
	Storage StorageConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// SAMLConfig holds the service-provider side SAML settings
type SAMLConfig struct {
	// Metadata source. Inline XML takes priority over the remote URL when
	// both are set; a session-staged tenant reference overrides both.
	MetadataInline string
	MetadataURL    string

	// AssertionURL overrides the scheme://host derived from the request
	// when composing the assertion-consumer URL.
	AssertionURL string

	// DefaultNextURL is the post-login destination when the caller did
	// not supply one.
	DefaultNextURL string

	// NoUserURL is where unmatched logins are sent under the strict
	// (no auto-create) policy.
	NoUserURL string

	// AllowedRedirectHosts are additional hosts accepted as post-login
	// redirect targets besides the current host.
	AllowedRedirectHosts []string

	// NameIDFormat is passed through to the authentication request when set.
	NameIDFormat string

	// Attribute-name mapping from logical names to assertion attribute names.
	Attributes AttributeMapConfig

	// SP signing credentials (PEM). Required for signed logout requests;
	// an ephemeral keypair is generated when absent.
	SPCertificatePEM string
	SPPrivateKeyPEM  string

	// MetadataFetchTimeout bounds remote IdP metadata fetches.
	MetadataFetchTimeout time.Duration

	// Provisioning controls the opt-in auto-create policy.
	Provisioning ProvisioningConfig
}

// AttributeMapConfig maps logical attribute names to the raw assertion
// attribute names emitted by the IdP.
type AttributeMapConfig struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
}

// ProvisioningConfig is the new-user profile applied when auto-provisioning
// is enabled. Disabled by default: unmatched logins are rejected.
type ProvisioningConfig struct {
	Enabled     bool
	Groups      []string
	ActiveFlag  bool
	StaffFlag   bool
	SuperFlag   bool
}

// StorageConfig holds identity-store and session-store configuration
type StorageConfig struct {
	// PostgresURL is the identity store DSN.
	PostgresURL string

	// RedisURL selects the Redis session store; empty selects the
	// in-memory store.
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// SessionTTL bounds both flow state and authenticated sessions.
	SessionTTL time.Duration

	// SessionCookieSecure controls the Secure flag on the session cookie.
	SessionCookieSecure bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		SAML:          loadSAMLConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SAML2AUTH_HOST", "0.0.0.0"),
		Port:            getEnv("SAML2AUTH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SAML2AUTH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SAML2AUTH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SAML2AUTH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SAML2AUTH_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadSAMLConfig loads the SAML SP configuration from environment
func loadSAMLConfig() SAMLConfig {
	return SAMLConfig{
		MetadataInline:       getEnv("SAML2AUTH_METADATA_INLINE", ""),
		MetadataURL:          getEnv("SAML2AUTH_METADATA_URL", ""),
		AssertionURL:         getEnv("SAML2AUTH_ASSERTION_URL", ""),
		DefaultNextURL:       getEnv("SAML2AUTH_DEFAULT_NEXT_URL", "/"),
		NoUserURL:            getEnv("SAML2AUTH_NO_USER_URL", "/login/?sso_login_no_user=true"),
		AllowedRedirectHosts: getEnvList("SAML2AUTH_ALLOWED_REDIRECT_HOSTS"),
		NameIDFormat:         getEnv("SAML2AUTH_NAME_ID_FORMAT", ""),
		Attributes: AttributeMapConfig{
			Email:     getEnv("SAML2AUTH_ATTR_EMAIL", "Email"),
			Username:  getEnv("SAML2AUTH_ATTR_USERNAME", "UserName"),
			FirstName: getEnv("SAML2AUTH_ATTR_FIRST_NAME", "FirstName"),
			LastName:  getEnv("SAML2AUTH_ATTR_LAST_NAME", "LastName"),
		},
		SPCertificatePEM:     getEnv("SAML2AUTH_SP_CERTIFICATE", ""),
		SPPrivateKeyPEM:      getEnv("SAML2AUTH_SP_PRIVATE_KEY", ""),
		MetadataFetchTimeout: getEnvDuration("SAML2AUTH_METADATA_FETCH_TIMEOUT", 10*time.Second),
		Provisioning: ProvisioningConfig{
			Enabled:    getEnvBool("SAML2AUTH_CREATE_USER", false),
			Groups:     getEnvList("SAML2AUTH_NEW_USER_GROUPS"),
			ActiveFlag: getEnvBool("SAML2AUTH_NEW_USER_ACTIVE", true),
			StaffFlag:  getEnvBool("SAML2AUTH_NEW_USER_STAFF", false),
			SuperFlag:  getEnvBool("SAML2AUTH_NEW_USER_SUPERUSER", false),
		},
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:         getEnv("SAML2AUTH_POSTGRES_URL", ""),
		RedisURL:            getEnv("SAML2AUTH_REDIS_URL", ""),
		RedisPassword:       getEnv("SAML2AUTH_REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("SAML2AUTH_REDIS_DB", 0),
		SessionTTL:          getEnvDuration("SAML2AUTH_SESSION_TTL", 12*time.Hour),
		SessionCookieSecure: getEnvBool("SAML2AUTH_SESSION_COOKIE_SECURE", true),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("SAML2AUTH_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("SAML2AUTH_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.SAML.MetadataInline == "" && c.SAML.MetadataURL == "" {
		return fmt.Errorf("an IdP metadata source is required: set SAML2AUTH_METADATA_INLINE or SAML2AUTH_METADATA_URL")
	}

	if c.SAML.DefaultNextURL == "" {
		return fmt.Errorf("default next URL is required")
	}

	if c.SAML.Attributes.Email == "" {
		return fmt.Errorf("the email attribute name is required")
	}

	// A signing cert without its key (or the reverse) is always a mistake.
	if (c.SAML.SPCertificatePEM == "") != (c.SAML.SPPrivateKeyPEM == "") {
		return fmt.Errorf("SP certificate and private key must be configured together")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required for the identity store")
	}

	if c.Storage.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
