package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultDumpsPath  = "./storage/dumps"
	DefaultRemotePath = "databases"
	DefaultUsername   = "Database Backup"
	DefaultIconURL    = "https://s3-ap-northeast-1.amazonaws.com/coreproc/images/icon_database.png"

	envPrefix = "DBBACKUP"
)

type Config struct {
	DumpsPath         string               `mapstructure:"dumps_path" validate:"required"`
	DefaultConnection string               `mapstructure:"default_connection"`
	Connections       []ConnectionConfig   `mapstructure:"connections" validate:"required,min=1,dive"`
	S3                S3Config             `mapstructure:"s3"`
	Notify            NotifyConfig         `mapstructure:"notify"`
	Notifications     []NotificationConfig `mapstructure:"notifications" validate:"dive"`
	Log               LogConfig            `mapstructure:"log"`
}

// ConnectionConfig describes one named database. For sqlite, Database is the
// path to the database file.
type ConnectionConfig struct {
	Name     string      `mapstructure:"name" validate:"required"`
	Driver   string      `mapstructure:"driver" validate:"required,oneof=mysql postgres pgsql sqlite"`
	Host     string      `mapstructure:"host"`
	Port     int         `mapstructure:"port" validate:"gte=0,lte=65535"`
	Database string      `mapstructure:"database" validate:"required"`
	User     string      `mapstructure:"user"`
	Password string      `mapstructure:"password"`
	Compress bool        `mapstructure:"compress"`
	Slack    SlackConfig `mapstructure:"slack"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	Token      string `mapstructure:"token"`
	SubDomain  string `mapstructure:"subdomain"`
}

// Enabled reports whether enough is configured to reach a webhook.
func (s SlackConfig) Enabled() bool {
	return s.WebhookURL != "" || (s.Token != "" && s.SubDomain != "")
}

// S3Config holds the remote object store settings. Backend "local" maps
// buckets to directories under LocalPath.
type S3Config struct {
	Backend           string `mapstructure:"backend" validate:"oneof=s3 local"`
	Bucket            string `mapstructure:"bucket"`
	Path              string `mapstructure:"path"`
	Region            string `mapstructure:"region"`
	Endpoint          string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKey         string `mapstructure:"access_key"`
	SecretKey         string `mapstructure:"secret_key"`
	UsePathStyle      bool   `mapstructure:"use_path_style"`
	LocalPath         string `mapstructure:"local_path"`
	RetentionDays     int    `mapstructure:"retention_days" validate:"gte=0,lte=36500"`
	DeleteConcurrency int    `mapstructure:"delete_concurrency" validate:"gte=0,lte=64"`
}

type NotifyConfig struct {
	Username   string        `mapstructure:"username"`
	IconURL    string        `mapstructure:"icon_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type" validate:"required,oneof=slack email"`
	On     []string            `mapstructure:"on" validate:"required,min=1,dive,oneof=success failure both"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	URL      string `mapstructure:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// LoadConfig reads the YAML file at path into a dedicated viper instance.
// An empty path searches for dbbackup.yaml in the working directory and
// /etc/dbbackup. DBBACKUP_* variables override file values.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dbbackup")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dbbackup")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ModifyConfig(&cfg)

	return &cfg, nil
}

// envKeys can be set through DBBACKUP_<KEY> even when the file omits them.
// Connections and notification routes are lists and only come from the file.
var envKeys = []string{
	"dumps_path",
	"default_connection",
	"s3.backend",
	"s3.bucket",
	"s3.path",
	"s3.region",
	"s3.endpoint",
	"s3.access_key",
	"s3.secret_key",
	"s3.use_path_style",
	"s3.local_path",
	"s3.retention_days",
	"s3.delete_concurrency",
	"notify.username",
	"notify.icon_url",
	"notify.timeout",
	"notify.max_retries",
	"log.level",
	"log.format",
}

func bindEnv(v *viper.Viper) error {
	for _, key := range envKeys {
		name := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, name); err != nil {
			return fmt.Errorf("bind env %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dumps_path", DefaultDumpsPath)
	v.SetDefault("s3.backend", "s3")
	v.SetDefault("s3.path", DefaultRemotePath)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.delete_concurrency", 1)
	v.SetDefault("notify.username", DefaultUsername)
	v.SetDefault("notify.icon_url", DefaultIconURL)
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// ModifyConfig expands ${VAR} references in string settings.
func ModifyConfig(cfg *Config) {
	cfg.DumpsPath = os.ExpandEnv(cfg.DumpsPath)
	cfg.DefaultConnection = os.ExpandEnv(cfg.DefaultConnection)

	for i := range cfg.Connections {
		c := &cfg.Connections[i]
		c.Name = os.ExpandEnv(c.Name)
		c.Driver = strings.ToLower(os.ExpandEnv(c.Driver))
		c.Host = os.ExpandEnv(c.Host)
		c.Database = os.ExpandEnv(c.Database)
		c.User = os.ExpandEnv(c.User)
		c.Password = os.ExpandEnv(c.Password)
		c.Slack.WebhookURL = os.ExpandEnv(c.Slack.WebhookURL)
		c.Slack.Token = os.ExpandEnv(c.Slack.Token)
		c.Slack.SubDomain = os.ExpandEnv(c.Slack.SubDomain)
	}

	s3 := &cfg.S3
	s3.Backend = strings.ToLower(os.ExpandEnv(s3.Backend))
	s3.Bucket = os.ExpandEnv(s3.Bucket)
	s3.Path = os.ExpandEnv(s3.Path)
	s3.Region = os.ExpandEnv(s3.Region)
	s3.Endpoint = os.ExpandEnv(s3.Endpoint)
	s3.AccessKey = os.ExpandEnv(s3.AccessKey)
	s3.SecretKey = os.ExpandEnv(s3.SecretKey)
	s3.LocalPath = os.ExpandEnv(s3.LocalPath)

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Type = strings.ToLower(os.ExpandEnv(nt.Type))
		for j := range nt.On {
			nt.On[j] = os.ExpandEnv(nt.On[j])
		}
		nt.Config.SMTPHost = os.ExpandEnv(nt.Config.SMTPHost)
		nt.Config.From = os.ExpandEnv(nt.Config.From)
		nt.Config.To = os.ExpandEnv(nt.Config.To)
		nt.Config.Username = os.ExpandEnv(nt.Config.Username)
		nt.Config.Password = os.ExpandEnv(nt.Config.Password)
		nt.Config.URL = os.ExpandEnv(nt.Config.URL)
	}
}

// Connection returns the named connection. An empty name falls back to
// default_connection, then to the only configured connection.
func (c *Config) Connection(name string) (*ConnectionConfig, error) {
	if name == "" {
		name = c.DefaultConnection
	}
	if name == "" {
		if len(c.Connections) == 1 {
			return &c.Connections[0], nil
		}
		return nil, fmt.Errorf("no database given and default_connection is not set")
	}
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], nil
		}
	}
	return nil, fmt.Errorf("database connection %q not found in config", name)
}
