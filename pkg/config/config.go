package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Cron         CronConfig
	GCP          GCPConfig
	Drive        DriveConfig
	Polling      PollingConfig
	Resilience   ResilienceConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Watch        WatchConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAREBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"CAREBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAREBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAREBRIDGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAREBRIDGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAREBRIDGE_DB_DSN"`
	Driver string `envconfig:"CAREBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAREBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"CAREBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAREBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"CAREBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAREBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAREBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAREBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAREBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAREBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAREBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAREBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAREBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"CAREBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAREBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAREBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAREBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAREBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAREBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAREBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CronConfig guards the externally triggered cron endpoints.
type CronConfig struct {
	Secret string `envconfig:"CAREBRIDGE_CRON_SECRET"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CAREBRIDGE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CAREBRIDGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CAREBRIDGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type DriveConfig struct {
	RecordingsFolderID string        `envconfig:"CAREBRIDGE_DRIVE_RECORDINGS_FOLDER_ID"`
	RequestTimeout     time.Duration `envconfig:"CAREBRIDGE_DRIVE_REQUEST_TIMEOUT" default:"60s"`
}

type PollingConfig struct {
	Interval          time.Duration `envconfig:"CAREBRIDGE_POLL_INTERVAL" default:"5m"`
	LookbackMinutes   int           `envconfig:"CAREBRIDGE_POLL_LOOKBACK_MINUTES" default:"30"`
	MaxResults        int           `envconfig:"CAREBRIDGE_POLL_MAX_RESULTS" default:"10"`
	Concurrency       int           `envconfig:"CAREBRIDGE_POLL_CONCURRENCY" default:"3"`
	TimeWindowMinutes int           `envconfig:"CAREBRIDGE_POLL_TIME_WINDOW_MINUTES" default:"30"`
	StaleAfter        time.Duration `envconfig:"CAREBRIDGE_POLL_STALE_PROCESSING_AFTER" default:"30m"`
	LockTTL           time.Duration `envconfig:"CAREBRIDGE_POLL_LOCK_TTL" default:"10m"`
}

type ResilienceConfig struct {
	RequestsPerInterval int           `envconfig:"CAREBRIDGE_RESILIENCE_REQUESTS_PER_INTERVAL" default:"10"`
	Interval            time.Duration `envconfig:"CAREBRIDGE_RESILIENCE_INTERVAL" default:"1s"`
	Burst               int           `envconfig:"CAREBRIDGE_RESILIENCE_BURST" default:"10"`
	MaxWait             time.Duration `envconfig:"CAREBRIDGE_RESILIENCE_MAX_WAIT" default:"2s"`
	FailureThreshold    int           `envconfig:"CAREBRIDGE_RESILIENCE_FAILURE_THRESHOLD" default:"5"`
	CoolDown            time.Duration `envconfig:"CAREBRIDGE_RESILIENCE_COOL_DOWN" default:"60s"`
}

type PubSubConfig struct {
	AnalysisTopic string `envconfig:"CAREBRIDGE_PUBSUB_ANALYSIS_TOPIC" default:"cb-transcript-analysis"`
}

type BigQueryConfig struct {
	Enabled               bool   `envconfig:"CAREBRIDGE_BIGQUERY_ENABLED" default:"false"`
	Dataset               string `envconfig:"CAREBRIDGE_BIGQUERY_DATASET" default:"carebridge"`
	ProcessingEventsTable string `envconfig:"CAREBRIDGE_BIGQUERY_PROCESSING_TABLE" default:"recording_processing_events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CAREBRIDGE_AUTO_MIGRATE" default:"false"`
}

type WatchConfig struct {
	WebhookURL    string        `envconfig:"CAREBRIDGE_WATCH_WEBHOOK_URL"`
	TTL           time.Duration `envconfig:"CAREBRIDGE_WATCH_TTL" default:"168h"`
	RenewalMargin time.Duration `envconfig:"CAREBRIDGE_WATCH_RENEWAL_MARGIN" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
