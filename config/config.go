package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   Server   `mapstructure:"server"`
	Log      Log      `mapstructure:"log"`
	Postgres Postgres `mapstructure:"postgres"`
	RabbitMQ RabbitMQ `mapstructure:"rabbitmq"`
	Minio    Minio    `mapstructure:"minio"`
	Oracle   Oracle   `mapstructure:"oracle"`
	Capture  Capture  `mapstructure:"capture"`
	Share    Share    `mapstructure:"share"`
	Email    Email    `mapstructure:"email"`
}

type Server struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Postgres is optional; an empty Host disables share record persistence.
type Postgres struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Database   string `mapstructure:"database"`
	AutoCreate bool   `mapstructure:"autocreate"`
}

func (p Postgres) Enabled() bool { return p.Host != "" }

func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.Username, p.Password, p.Database)
}

type RabbitMQ struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Queue    string `mapstructure:"queue"`
}

func (r RabbitMQ) Enabled() bool { return r.Host != "" }

func (r RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.Username, r.Password, r.Host, r.Port)
}

type Minio struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

func (m Minio) Enabled() bool { return m.Endpoint != "" }

type Oracle struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	URL         string        `mapstructure:"url"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type Capture struct {
	BrowserURL  string        `mapstructure:"browser_url"`
	LogoURL     string        `mapstructure:"logo_url"`
	LogoPath    string        `mapstructure:"logo_path"`
	Scale       float64       `mapstructure:"scale"`
	Quality     float64       `mapstructure:"quality"`
	Background  string        `mapstructure:"background"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	LogoTimeout time.Duration `mapstructure:"logo_timeout"`
}

type Share struct {
	Template string `mapstructure:"template"`
}

type Email struct {
	APIKey string `mapstructure:"api_key"`
	From   string `mapstructure:"from"`
}

func (e Email) Enabled() bool { return e.APIKey != "" }

var ErrMissingCredential = errors.New("config: oracle api key is not configured (set ORACLE_API_KEY)")

func InitConfig(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CRYSTALBALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("oracle.api_key", "CRYSTALBALL_ORACLE_API_KEY", "ORACLE_API_KEY")
	_ = v.BindEnv("email.api_key", "CRYSTALBALL_EMAIL_API_KEY", "MAILERSEND_API_KEY")

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("postgres.port", 5432)
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.queue", "fortune_shares")
	v.SetDefault("minio.bucket", "fortunes")
	v.SetDefault("minio.secure", true)

	v.SetDefault("oracle.provider", "gemini")
	v.SetDefault("oracle.max_tokens", 100)
	v.SetDefault("oracle.temperature", 0.7)
	v.SetDefault("oracle.timeout", 30*time.Second)

	v.SetDefault("capture.scale", 2.0)
	v.SetDefault("capture.quality", 0.95)
	v.SetDefault("capture.background", "rgba(26, 16, 64, 1)")
	v.SetDefault("capture.settle_delay", 500*time.Millisecond)
	v.SetDefault("capture.logo_timeout", time.Second)

	v.SetDefault("share.template", "https://crystal-ball-fortunes.example.com/share/%s")
}

// Validate reports configuration that would make the service fail later in a
// less obvious way.
func (c *Config) Validate() error {
	if c.Oracle.APIKey == "" {
		return ErrMissingCredential
	}
	switch c.Oracle.Provider {
	case "gemini", "anthropic", "huggingface":
	default:
		return fmt.Errorf("config: unknown oracle provider %q", c.Oracle.Provider)
	}
	if c.Oracle.Provider == "huggingface" && c.Oracle.URL == "" {
		return errors.New("config: oracle.url is required for the huggingface provider")
	}
	if c.Capture.Quality < 0 || c.Capture.Quality > 1 {
		return fmt.Errorf("config: capture.quality must be within [0,1], got %v", c.Capture.Quality)
	}
	if c.Capture.Scale <= 0 || c.Capture.Scale > 4 {
		return fmt.Errorf("config: capture.scale must be within (0,4], got %v", c.Capture.Scale)
	}
	if !strings.Contains(c.Share.Template, "%s") {
		return errors.New("config: share.template must contain %s")
	}
	return nil
}
