package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"opsdemo/internal/models"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, an optional YAML file and
// OPSDEMO_* environment variables, in that order of precedence.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config, os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// credentialKeys are CRM credentials that belong in SF_* variables, never in
// a config file.
var credentialKeys = []string{"username", "password", "security_token", "token"}

// warnMisplacedCredentials logs when a config file carries CRM credentials
// under the crm section. They are ignored by the main decoder.
func warnMisplacedCredentials(data []byte) {
	var raw struct {
		CRM map[string]interface{} `yaml:"crm"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return
	}
	for _, key := range credentialKeys {
		if _, ok := raw.CRM[key]; ok {
			slog.Warn("CRM credentials in the config file are ignored; set SF_USERNAME, SF_PASSWORD and SF_TOKEN instead.", "config_key", "crm."+key)
		}
	}
}

func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnMisplacedCredentials(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment applies OPSDEMO_* overrides. Unparseable values are
// skipped so the file or default value stands.
func loadFromEnvironment(config *models.Config, getenv func(string) string) {
	setInt := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			*dst = strings.ToLower(v) == "true"
		}
	}
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	// Server
	setInt("OPSDEMO_PORT", &config.Server.Port)
	setString("OPSDEMO_HOST", &config.Server.Host)
	setDuration("OPSDEMO_READ_TIMEOUT", &config.Server.ReadTimeout)
	setDuration("OPSDEMO_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	setDuration("OPSDEMO_IDLE_TIMEOUT", &config.Server.IdleTimeout)
	setBool("OPSDEMO_TLS_ENABLED", &config.Server.TLSEnabled)
	setString("OPSDEMO_TLS_CERT_FILE", &config.Server.TLSCertFile)
	setString("OPSDEMO_TLS_KEY_FILE", &config.Server.TLSKeyFile)
	setBool("OPSDEMO_CORS_ENABLED", &config.Server.CORS.Enabled)

	// Storage
	setString("OPSDEMO_TASKS_FILE", &config.Storage.TasksFile)

	// CRM client tuning; credentials stay in SF_*
	setString("OPSDEMO_CRM_LOGIN_URL", &config.CRM.LoginURL)
	setString("OPSDEMO_CRM_API_VERSION", &config.CRM.APIVersion)
	setDuration("OPSDEMO_CRM_TIMEOUT", &config.CRM.Timeout)

	// Rate limiting
	setBool("OPSDEMO_RATE_LIMIT_ENABLED", &config.Security.RateLimit.Enabled)
	setInt("OPSDEMO_RATE_LIMIT_RPM", &config.Security.RateLimit.RequestsPerMinute)
	setInt("OPSDEMO_RATE_LIMIT_BURST", &config.Security.RateLimit.BurstSize)

	// Logging
	setString("OPSDEMO_LOG_LEVEL", &config.Logging.Level)
	setString("OPSDEMO_LOG_FORMAT", &config.Logging.Format)
	setString("OPSDEMO_LOG_OUTPUT", &config.Logging.Output)
	setString("OPSDEMO_LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics
	setBool("OPSDEMO_METRICS_ENABLED", &config.Metrics.Enabled)
	setString("OPSDEMO_METRICS_PATH", &config.Metrics.Path)
	setInt("OPSDEMO_METRICS_PORT", &config.Metrics.Port)

	// Tracing
	setString("OPSDEMO_SERVICE_NAME", &config.Observability.ServiceName)
	setBool("OPSDEMO_TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	setString("OPSDEMO_TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	setString("OPSDEMO_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	if v := getenv("OPSDEMO_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Observability.Tracing.SampleRate = f
		}
	}
}

// SaveExample writes an example configuration file. It starts the server as
// written: the built-in task catalog is served and the CRM login host follows
// SF_DOMAIN.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Security.RateLimit.Enabled = true
	config.Observability.Tracing.Exporter = models.TraceExporterOTLP
	config.Observability.Tracing.OTLPEndpoint = "otel-collector:4317"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
