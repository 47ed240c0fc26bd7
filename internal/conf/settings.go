package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. FICHAI_SERVER_PORT.
const EnvPrefix = "FICHAI"

// Settings is the complete runtime configuration.
type Settings struct {
	Server    ServerSettings    `mapstructure:"server" yaml:"server" json:"server"`
	Database  DatabaseSettings  `mapstructure:"database" yaml:"database" json:"database"`
	Auth      AuthSettings      `mapstructure:"auth" yaml:"auth" json:"auth"`
	Email     EmailSettings     `mapstructure:"email" yaml:"email" json:"email"`
	Alerting  AlertingSettings  `mapstructure:"alerting" yaml:"alerting" json:"alerting"`
	Redis     RedisSettings     `mapstructure:"redis" yaml:"redis" json:"redis"`
	MQTT      MQTTSettings      `mapstructure:"mqtt" yaml:"mqtt" json:"mqtt"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`
	Logging   LoggingSettings   `mapstructure:"logging" yaml:"logging" json:"logging"`
}

type ServerSettings struct {
	Host            string   `mapstructure:"host" yaml:"host" json:"host"`
	Port            int      `mapstructure:"port" yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     Duration `mapstructure:"readTimeout" yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    Duration `mapstructure:"writeTimeout" yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout" json:"shutdownTimeout"`
	Debug           bool     `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// Addr returns the listen address.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseSettings struct {
	// Driver is one of sqlite, mysql or postgres.
	Driver       string   `mapstructure:"driver" yaml:"driver" json:"driver" validate:"oneof=sqlite mysql postgres"`
	DSN          string   `mapstructure:"dsn" yaml:"dsn" json:"-" validate:"required"`
	MaxOpenConns int      `mapstructure:"maxOpenConns" yaml:"maxOpenConns" json:"maxOpenConns" validate:"min=0"`
	MaxIdleConns int      `mapstructure:"maxIdleConns" yaml:"maxIdleConns" json:"maxIdleConns" validate:"min=0"`
	ConnMaxLife  Duration `mapstructure:"connMaxLifetime" yaml:"connMaxLifetime" json:"connMaxLifetime"`
	Debug        bool     `mapstructure:"debug" yaml:"debug" json:"debug"`
}

type AuthSettings struct {
	SessionName   string `mapstructure:"sessionName" yaml:"sessionName" json:"sessionName" validate:"required"`
	SessionSecret string `mapstructure:"sessionSecret" yaml:"sessionSecret" json:"-" validate:"required,min=16"`
}

// EmailSettings selects and configures the outbound email transport. It is
// handed read-only to the notification dispatcher.
type EmailSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Provider string `mapstructure:"provider" yaml:"provider" json:"provider" validate:"oneof=console smtp sendgrid gmail"`
	From     string `mapstructure:"from" yaml:"from" json:"from" validate:"omitempty,email"`
	FromName string `mapstructure:"fromName" yaml:"fromName" json:"fromName"`
	// SubjectPrefix is prepended to every subject, e.g. "[fich.ai] ".
	SubjectPrefix string `mapstructure:"subjectPrefix" yaml:"subjectPrefix" json:"subjectPrefix"`

	SMTP     SMTPSettings     `mapstructure:"smtp" yaml:"smtp" json:"smtp"`
	SendGrid SendGridSettings `mapstructure:"sendgrid" yaml:"sendgrid" json:"sendgrid"`
	Gmail    GmailSettings    `mapstructure:"gmail" yaml:"gmail" json:"gmail"`

	// MaxConcurrent bounds parallel sends during a fan-out.
	MaxConcurrent int `mapstructure:"maxConcurrent" yaml:"maxConcurrent" json:"maxConcurrent" validate:"min=1"`
	// RatePerSecond limits sends per second; 0 disables limiting.
	RatePerSecond float64  `mapstructure:"ratePerSecond" yaml:"ratePerSecond" json:"ratePerSecond" validate:"min=0"`
	Timeout       Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	// Encryption is passed to the SMTP URL: auto, none, explicittls or implicittls.
	Encryption string `mapstructure:"encryption" yaml:"encryption" json:"encryption"`
}

type SendGridSettings struct {
	APIKey  string `mapstructure:"apiKey" yaml:"apiKey" json:"-"`
	BaseURL string `mapstructure:"baseUrl" yaml:"baseUrl" json:"baseUrl"`
}

type GmailSettings struct {
	ClientID     string `mapstructure:"clientId" yaml:"clientId" json:"clientId"`
	ClientSecret string `mapstructure:"clientSecret" yaml:"clientSecret" json:"-"`
	RefreshToken string `mapstructure:"refreshToken" yaml:"refreshToken" json:"-"`
	// Endpoint overrides the Gmail API base URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
}

type AlertingSettings struct {
	// Language selects the default template language (ca, es, en).
	Language               string   `mapstructure:"language" yaml:"language" json:"language"`
	EventBufferSize        int      `mapstructure:"eventBufferSize" yaml:"eventBufferSize" json:"eventBufferSize" validate:"min=1"`
	SchedulerTick          Duration `mapstructure:"schedulerTick" yaml:"schedulerTick" json:"schedulerTick"`
	MaxRepeats             int      `mapstructure:"maxRepeats" yaml:"maxRepeats" json:"maxRepeats" validate:"min=0"`
	HistoryRetention       Duration `mapstructure:"historyRetention" yaml:"historyRetention" json:"historyRetention"`
	HistoryCleanupSchedule string   `mapstructure:"historyCleanupSchedule" yaml:"historyCleanupSchedule" json:"historyCleanupSchedule"`
	// Dedup selects the cooldown store: memory or redis.
	Dedup string `mapstructure:"dedup" yaml:"dedup" json:"dedup" validate:"oneof=memory redis"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`
}

type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker" json:"broker"`
	ClientID string `mapstructure:"clientId" yaml:"clientId" json:"clientId"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	Topic    string `mapstructure:"topic" yaml:"topic" json:"topic"`
	QoS      byte   `mapstructure:"qos" yaml:"qos" json:"qos" validate:"max=2"`
}

type TelemetrySettings struct {
	SentryDSN   string  `mapstructure:"sentryDsn" yaml:"sentryDsn" json:"-"`
	Environment string  `mapstructure:"environment" yaml:"environment" json:"environment"`
	SampleRate  float64 `mapstructure:"sampleRate" yaml:"sampleRate" json:"sampleRate" validate:"min=0,max=1"`
}

type LoggingSettings struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "fichai.db")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	v.SetDefault("auth.sessionName", "fichai_session")

	v.SetDefault("email.enabled", true)
	v.SetDefault("email.provider", "console")
	v.SetDefault("email.fromName", "fich.ai")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.encryption", "auto")
	v.SetDefault("email.sendgrid.baseUrl", "https://api.sendgrid.com")
	v.SetDefault("email.maxConcurrent", 4)
	v.SetDefault("email.ratePerSecond", 5)
	v.SetDefault("email.timeout", "20s")

	v.SetDefault("alerting.language", "ca")
	v.SetDefault("alerting.eventBufferSize", 1000)
	v.SetDefault("alerting.schedulerTick", "30s")
	v.SetDefault("alerting.maxRepeats", 8)
	v.SetDefault("alerting.historyRetention", "2160h")
	v.SetDefault("alerting.historyCleanupSchedule", "0 3 * * *")
	v.SetDefault("alerting.dedup", "memory")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("mqtt.clientId", "fichai-alerts")
	v.SetDefault("mqtt.topic", "fichai/+/attendance")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("telemetry.environment", "production")
	v.SetDefault("telemetry.sampleRate", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from configFile (or the default search paths when
// empty), a .env file in the working directory and FICHAI_* environment
// variables, in increasing order of precedence.
func Load(configFile string) (*Settings, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range configPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks settings invariants.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if s.Alerting.Dedup == "redis" && s.Redis.Addr == "" {
		return fmt.Errorf("invalid configuration: redis.addr is required when alerting.dedup is redis")
	}
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		return fmt.Errorf("invalid configuration: mqtt.broker is required when mqtt is enabled")
	}
	if s.Email.Enabled {
		switch s.Email.Provider {
		case "smtp":
			if s.Email.SMTP.Host == "" {
				return fmt.Errorf("invalid configuration: email.smtp.host is required for the smtp provider")
			}
		case "sendgrid":
			if s.Email.SendGrid.APIKey == "" {
				return fmt.Errorf("invalid configuration: email.sendgrid.apiKey is required for the sendgrid provider")
			}
		case "gmail":
			if s.Email.Gmail.RefreshToken == "" {
				return fmt.Errorf("invalid configuration: email.gmail.refreshToken is required for the gmail provider")
			}
		}
	}
	return nil
}

// Default returns the settings produced by the defaults alone.
func Default() *Settings {
	v := viper.New()
	SetDefaults(v)
	var s Settings
	// Defaults always decode.
	_ = v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook()))
	return &s
}

// RetentionCutoff returns the oldest history timestamp to keep at now.
func (a AlertingSettings) RetentionCutoff(now time.Time) time.Time {
	return now.Add(-a.HistoryRetention.Std())
}

func configPaths() []string {
	paths := []string{".", "./config"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".fichai"))
	}
	return append(paths, "/etc/fichai")
}

// bindEnvKeys makes viper aware of every key so AutomaticEnv also applies to
// values without a default or a config file entry.
func bindEnvKeys(v *viper.Viper) {
	keys := map[string]any{}
	if err := mapstructure.Decode(Settings{}, &keys); err != nil {
		return
	}
	for _, k := range flattenKeys("", keys) {
		_ = v.BindEnv(k)
	}
}

func flattenKeys(prefix string, m map[string]any) []string {
	var out []string
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			out = append(out, flattenKeys(key, nested)...)
			continue
		}
		out = append(out, key)
	}
	return out
}
