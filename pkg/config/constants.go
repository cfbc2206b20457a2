package config

// EnvPrefix namespaces every platform variable. The YouTube secrets are read
// without the prefix to match how the hosting platform injects them.
const EnvPrefix = "GURUJI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "GURUJI_APP_ENV"
	EnvPort     = "GURUJI_APP_PORT"
	EnvLogLevel = "GURUJI_LOG_LEVEL"

	EnvDBDSN  = "GURUJI_DB_DSN"
	EnvDBHost = "GURUJI_DB_HOST"
	EnvDBUser = "GURUJI_DB_USER"
	EnvDBName = "GURUJI_DB_NAME"

	EnvRedisURL = "GURUJI_REDIS_URL"

	EnvGCPProjectID = "GURUJI_GCP_PROJECT_ID"
	EnvGCSBucket    = "GURUJI_GCS_BUCKET_NAME"

	EnvPubSubLessonVideoSub = "GURUJI_PUBSUB_LESSON_VIDEO_SUBSCRIPTION"

	EnvYouTubeClientID     = "YOUTUBE_CLIENT_ID"
	EnvYouTubeClientSecret = "YOUTUBE_CLIENT_SECRET"
	EnvYouTubeRefreshToken = "YOUTUBE_REFRESH_TOKEN"

	EnvIngestObjectPrefix  = "GURUJI_INGEST_OBJECT_PREFIX"
	EnvIngestUploadTimeout = "GURUJI_INGEST_UPLOAD_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
