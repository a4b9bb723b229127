package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL        string
	Port               string
	IsProduction       bool
	EnableDBCheck      bool
	JWTSecret          string
	RateLimit          string
	CORSAllowedOrigins []string

	RedisAddr     string
	RedisPassword string

	// Google Cloud
	GCPProjectID             string
	GCPCredentialsJSON       string
	GCSBucket                string
	PubSubEventTopic         string
	PubSubActivityTopic      string
	PubSubActionSubscription string
	EventSource              string

	// Provider file drop
	SFTPAddr        string
	SFTPUser        string
	SFTPPassword    string
	SFTPPrivateKey  string
	SFTPHostKey     string
	SFTPOutboundDir string
	SFTPInboundDir  string
	SFTPArchiveDir  string

	// Partner REST APIs
	VPayAPIURL        string
	VPayClientID      string
	VPayClientSecret  string
	VPayTokenURL      string
	BillingAPIURL     string
	ProductAPIURL     string
	ProductCacheTTL   time.Duration
	APIRetryMaxTries  uint
	APIRetryWait      time.Duration
	TransportMaxTries uint

	SchedulerInterval   time.Duration
	SchedulerJobTimeout time.Duration
	SelfHealUnreleased  bool
	EnabledJobs         []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("GCP_PROJECT_ID", "")
	viper.SetDefault("GCP_CREDENTIALS_JSON", "")
	viper.SetDefault("GCS_BUCKET", "")
	viper.SetDefault("PUBSUB_EVENT_TOPIC", "disbursement-events")
	viper.SetDefault("PUBSUB_ACTIVITY_TOPIC", "activity-log")
	viper.SetDefault("PUBSUB_ACTION_SUBSCRIPTION", "")
	viper.SetDefault("EVENT_SOURCE", "disbursement-backoffice")
	viper.SetDefault("SFTP_ADDR", "")
	viper.SetDefault("SFTP_USER", "")
	viper.SetDefault("SFTP_PASSWORD", "")
	viper.SetDefault("SFTP_PRIVATE_KEY", "")
	viper.SetDefault("SFTP_HOST_KEY", "")
	viper.SetDefault("SFTP_OUTBOUND_DIR", "/outbound")
	viper.SetDefault("SFTP_INBOUND_DIR", "/inbound")
	viper.SetDefault("SFTP_ARCHIVE_DIR", "/archive")
	viper.SetDefault("VPAY_API_URL", "")
	viper.SetDefault("VPAY_CLIENT_ID", "")
	viper.SetDefault("VPAY_CLIENT_SECRET", "")
	viper.SetDefault("VPAY_TOKEN_URL", "")
	viper.SetDefault("BILLING_API_URL", "")
	viper.SetDefault("PRODUCT_API_URL", "")
	viper.SetDefault("PRODUCT_CACHE_TTL", "10m")
	viper.SetDefault("API_RETRY_MAX_TRIES", 3)
	viper.SetDefault("API_RETRY_WAIT", "500ms")
	viper.SetDefault("TRANSPORT_MAX_TRIES", 3)
	viper.SetDefault("SCHEDULER_INTERVAL", "5m")
	viper.SetDefault("SCHEDULER_JOB_TIMEOUT", "10m")
	viper.SetDefault("SELF_HEAL_UNRELEASED", false)
	viper.SetDefault("ENABLED_JOBS", "")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set. Using the in-memory store.")
	}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "a-very-secret-key-should-be-longer-and-random" // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	cfg.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))

	cfg.RedisAddr = viper.GetString("REDIS_ADDR")
	cfg.RedisPassword = viper.GetString("REDIS_PASSWORD")
	if cfg.RedisAddr == "" {
		log.Println("Warning: REDIS_ADDR not set. Product configuration is not cached and scheduler locks are local only.")
	}

	cfg.GCPProjectID = viper.GetString("GCP_PROJECT_ID")
	cfg.GCPCredentialsJSON = viper.GetString("GCP_CREDENTIALS_JSON")
	cfg.GCSBucket = viper.GetString("GCS_BUCKET")
	cfg.PubSubEventTopic = viper.GetString("PUBSUB_EVENT_TOPIC")
	cfg.PubSubActivityTopic = viper.GetString("PUBSUB_ACTIVITY_TOPIC")
	cfg.PubSubActionSubscription = viper.GetString("PUBSUB_ACTION_SUBSCRIPTION")
	cfg.EventSource = viper.GetString("EVENT_SOURCE")

	cfg.SFTPAddr = viper.GetString("SFTP_ADDR")
	cfg.SFTPUser = viper.GetString("SFTP_USER")
	cfg.SFTPPassword = viper.GetString("SFTP_PASSWORD")
	cfg.SFTPPrivateKey = viper.GetString("SFTP_PRIVATE_KEY")
	cfg.SFTPHostKey = viper.GetString("SFTP_HOST_KEY")
	cfg.SFTPOutboundDir = viper.GetString("SFTP_OUTBOUND_DIR")
	cfg.SFTPInboundDir = viper.GetString("SFTP_INBOUND_DIR")
	cfg.SFTPArchiveDir = viper.GetString("SFTP_ARCHIVE_DIR")

	cfg.VPayAPIURL = viper.GetString("VPAY_API_URL")
	cfg.VPayClientID = viper.GetString("VPAY_CLIENT_ID")
	cfg.VPayClientSecret = viper.GetString("VPAY_CLIENT_SECRET")
	cfg.VPayTokenURL = viper.GetString("VPAY_TOKEN_URL")
	cfg.BillingAPIURL = viper.GetString("BILLING_API_URL")
	cfg.ProductAPIURL = viper.GetString("PRODUCT_API_URL")
	if cfg.ProductAPIURL == "" {
		log.Println("Warning: PRODUCT_API_URL not set. Disbursements cannot be created or released.")
	}

	cfg.ProductCacheTTL = durationOr("PRODUCT_CACHE_TTL", 10*time.Minute)
	cfg.APIRetryMaxTries = viper.GetUint("API_RETRY_MAX_TRIES")
	cfg.APIRetryWait = durationOr("API_RETRY_WAIT", 500*time.Millisecond)
	cfg.TransportMaxTries = viper.GetUint("TRANSPORT_MAX_TRIES")

	cfg.SchedulerInterval = durationOr("SCHEDULER_INTERVAL", 5*time.Minute)
	cfg.SchedulerJobTimeout = durationOr("SCHEDULER_JOB_TIMEOUT", 10*time.Minute)
	cfg.SelfHealUnreleased = viper.GetBool("SELF_HEAL_UNRELEASED")
	cfg.EnabledJobs = splitList(viper.GetString("ENABLED_JOBS"))

	return cfg, nil
}

// durationOr parses key as a duration, logging and falling back to def when invalid.
func durationOr(key string, def time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, def.String())
		}
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
