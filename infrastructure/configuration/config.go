package configuration

import (
	"fmt"
	"os"
	"strconv"

	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App          App          `json:"app"`
	Database     Database     `json:"database"`
	RedisClient  RedisClient  `json:"redisClient"`
	Pubsub       Pubsub       `json:"pubsub"`
	ServiceBus   ServiceBus   `json:"serviceBus"`
	Logger       Logger       `json:"logger"`
	Platforms    Platforms    `json:"platforms"`
	Distribution Distribution `json:"distribution"`
	Media        Media        `json:"media"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
	// PublicURL is used to build default OAuth redirect URIs.
	PublicURL string `json:"publicURL"`
}

type Database struct {
	Psql Db `json:"psql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

// ServiceBus replaces Pub/Sub as the event sink when a namespace or
// connection string is set.
type ServiceBus struct {
	Namespace        string `json:"namespace"`
	ConnectionString string `json:"connectionString"`
	Queue            string `json:"queue"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

// Platforms holds the app credentials registered with each social platform.
type Platforms struct {
	Instagram OAuthClient `json:"instagram"`
	TikTok    OAuthClient `json:"tiktok"`
	Twitter   OAuthClient `json:"twitter"`
	YouTube   OAuthClient `json:"youtube"`
}

type OAuthClient struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectURI"`
	Scopes       []string `json:"scopes"`
	BearerToken  string   `json:"bearerToken"`
	APIKey       string   `json:"apiKey"`
	APISecret    string   `json:"apiSecret"`
	// BaseURL overrides the platform API root (sandboxes, tests).
	BaseURL string `json:"baseURL"`
}

// Distribution tunes the orchestrator and the scheduled-post worker.
type Distribution struct {
	Platforms           []string `json:"platforms"`
	ScheduleQueueKey    string   `json:"scheduleQueueKey"`
	PollIntervalSeconds int      `json:"pollIntervalSeconds"`
	BatchSize           int      `json:"batchSize"`
	CallTimeoutSeconds  int      `json:"callTimeoutSeconds"`
	AnalyticsRate       float64  `json:"analyticsRate"`
	AnalyticsBurst      int      `json:"analyticsBurst"`
}

// Media configures object storage access for s3:// media URLs.
type Media struct {
	S3Endpoint      string `json:"s3Endpoint"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	UsePathStyle    bool   `json:"usePathStyle"`
}

var C Config

func init() {
	LoadEnvFromFile(".env", "config.env")
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initDistribution(&C)
	initMedia(&C)
	logger.SetLevel(getConfigValue(C.Logger.Level, "LOG_LEVEL", ""))
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithError(err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithError(err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	p := &C.Database.Psql
	p.Name = getConfigValue(p.Name, "DB_NAME", "")
	p.Host = getConfigValue(p.Host, "DB_HOST", "localhost")
	p.Port = getConfigValue(p.Port, "DB_PORT", "5432")
	p.User = getConfigValue(p.User, "DB_USER", "postgres")
	p.Password = getConfigValue(p.Password, "DB_PASSWORD", "")
	p.SSLMode = getConfigValue(p.SSLMode, "DB_SSLMODE", "disable")
	logger.GetLogger().WithField("host", p.Host).WithField("name", p.Name).Info("Database configuration")

	r := &C.RedisClient
	r.Host = getConfigValue(r.Host, "REDIS_HOST", "localhost")
	r.Port = getConfigValue(r.Port, "REDIS_PORT", "6379")
	r.Password = getConfigValue(r.Password, "REDIS_PASSWORD", "")

	C.Pubsub.ProjectID = getConfigValue(C.Pubsub.ProjectID, "PUBSUB_PROJECT_ID", "")
	C.Pubsub.Topic = getConfigValue(C.Pubsub.Topic, "PUBSUB_TOPIC", "distribution-events")

	sb := &C.ServiceBus
	sb.Namespace = getConfigValue(sb.Namespace, "SERVICEBUS_NAMESPACE", "")
	sb.ConnectionString = getConfigValue(sb.ConnectionString, "SERVICEBUS_CONNECTION_STRING", "")
	sb.Queue = getConfigValue(sb.Queue, "SERVICEBUS_QUEUE", "distribution-events")
}

func initApp(C *Config) {
	// SECRET_KEY from the environment overrides the config file
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	C.App.TLSCertFile = getConfigValue(C.App.TLSCertFile, "TLS_CERT_FILE", "")
	C.App.TLSKeyFile = getConfigValue(C.App.TLSKeyFile, "TLS_KEY_FILE", "")
	C.App.PublicURL = getConfigValue(C.App.PublicURL, "PUBLIC_URL", "")
	if C.App.TLSEnabled {
		logger.GetLogger().WithFields(map[string]interface{}{"cert": C.App.TLSCertFile, "key": C.App.TLSKeyFile}).Info("TLS enabled via configuration")
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

// DefaultPollIntervalSeconds is how often due scheduled posts are looked up.
const DefaultPollIntervalSeconds = 30

func initDistribution(C *Config) {
	d := &C.Distribution
	if len(d.Platforms) == 0 {
		d.Platforms = []string{"instagram", "tiktok", "twitter", "youtube"}
	}
	d.ScheduleQueueKey = getConfigValue(d.ScheduleQueueKey, "SCHEDULE_QUEUE_KEY", "distribution:scheduled")
	d.PollIntervalSeconds = getConfigInt(d.PollIntervalSeconds, "SCHEDULE_POLL_SECONDS", DefaultPollIntervalSeconds)
	d.BatchSize = getConfigInt(d.BatchSize, "SCHEDULE_BATCH_SIZE", 20)
	d.CallTimeoutSeconds = getConfigInt(d.CallTimeoutSeconds, "PLATFORM_CALL_TIMEOUT_SECONDS", 300)
	if d.AnalyticsRate <= 0 {
		d.AnalyticsRate = 2
	}
	if d.AnalyticsBurst <= 0 {
		d.AnalyticsBurst = 4
	}
}

func initMedia(C *Config) {
	m := &C.Media
	m.S3Endpoint = getConfigValue(m.S3Endpoint, "S3_ENDPOINT", "")
	m.Region = getConfigValue(m.Region, "AWS_REGION", "us-east-1")
	m.AccessKeyID = getConfigValue(m.AccessKeyID, "AWS_ACCESS_KEY_ID", "")
	m.SecretAccessKey = getConfigValue(m.SecretAccessKey, "AWS_SECRET_ACCESS_KEY", "")
}

// getConfigInt resolves env first, then the config value, then the default.
// Only positive values count; anything else falls through.
func getConfigInt(configValue int, envKey string, defaultValue int) int {
	if v := os.Getenv(envKey); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n
		}
		logger.GetLogger().WithField("key", envKey).WithField("value", v).Warn("ignoring non-positive or invalid integer setting")
	}
	if configValue > 0 {
		return configValue
	}
	return defaultValue
}
