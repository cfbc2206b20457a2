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
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	YouTube      YouTubeConfig
	Ingest       IngestConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ingest.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GURUJI_APP_ENV" required:"true"`
	Port         string `envconfig:"GURUJI_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GURUJI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GURUJI_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"GURUJI_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GURUJI_SERVICE_KIND" default:"ingest-worker"`
}

type DBConfig struct {
	DSN string `envconfig:"GURUJI_DB_DSN"`

	LegacyHost     string `envconfig:"GURUJI_DB_HOST"`
	LegacyPort     int    `envconfig:"GURUJI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GURUJI_DB_USER"`
	LegacyPassword string `envconfig:"GURUJI_DB_PASSWORD"`
	LegacyName     string `envconfig:"GURUJI_DB_NAME"`
	LegacySSLMode  string `envconfig:"GURUJI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GURUJI_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"GURUJI_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"GURUJI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GURUJI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GURUJI_REDIS_URL"`
	Address      string        `envconfig:"GURUJI_REDIS_ADDR"`
	Password     string        `envconfig:"GURUJI_REDIS_PASSWORD"`
	DB           int           `envconfig:"GURUJI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GURUJI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GURUJI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GURUJI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GURUJI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GURUJI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GURUJI_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GURUJI_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GURUJI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GURUJI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"GURUJI_GCS_BUCKET_NAME"`
}

type PubSubConfig struct {
	LessonVideoSubscription string `envconfig:"GURUJI_PUBSUB_LESSON_VIDEO_SUBSCRIPTION"`
}

// YouTubeConfig holds the video host secrets. They are deliberately not
// required at load time: a missing secret fails the upload invocation instead
// of the process.
type YouTubeConfig struct {
	ClientID     string `envconfig:"YOUTUBE_CLIENT_ID"`
	ClientSecret string `envconfig:"YOUTUBE_CLIENT_SECRET"`
	RefreshToken string `envconfig:"YOUTUBE_REFRESH_TOKEN"`
	RedirectURL  string `envconfig:"GURUJI_YOUTUBE_REDIRECT_URL" default:"http://localhost"`
}

type IngestConfig struct {
	ObjectPrefix    string        `envconfig:"GURUJI_INGEST_OBJECT_PREFIX" default:"course-videos"`
	UploadTimeout   time.Duration `envconfig:"GURUJI_INGEST_UPLOAD_TIMEOUT" default:"30m"`
	IdempotencyTTL  time.Duration `envconfig:"GURUJI_INGEST_IDEMPOTENCY_TTL" default:"72h"`
	MaxOutstanding  int           `envconfig:"GURUJI_INGEST_MAX_OUTSTANDING" default:"4"`
	ReceiverWorkers int           `envconfig:"GURUJI_INGEST_RECEIVER_WORKERS" default:"1"`
}

func (i IngestConfig) validate() error {
	prefix := strings.Trim(strings.TrimSpace(i.ObjectPrefix), "/")
	if prefix == "" || strings.Contains(prefix, "/") {
		return fmt.Errorf("%s must be a single path segment, got %q", EnvIngestObjectPrefix, i.ObjectPrefix)
	}
	if i.UploadTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvIngestUploadTimeout)
	}
	return nil
}

type ReconcileConfig struct {
	StuckAfter time.Duration `envconfig:"GURUJI_RECONCILE_STUCK_AFTER" default:"2h"`
	Interval   time.Duration `envconfig:"GURUJI_RECONCILE_INTERVAL" default:"15m"`
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
