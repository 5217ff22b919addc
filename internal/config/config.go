package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Store         StoreConfig         `json:"store"`
	Mongo         MongoConfig         `json:"mongo"`
	Database      DatabaseConfig      `json:"database"`
	Redis         RedisConfig         `json:"redis"`
	Storage       StorageConfig       `json:"storage"`
	CropDirectory CropDirectoryConfig `json:"crop_directory"`
	Chatrace      ChatraceConfig      `json:"chatrace"`
	SMS           SMSConfig           `json:"sms"`
	Kafka         KafkaConfig         `json:"kafka"`
	Auth          AuthConfig          `json:"auth"`
	Workers       WorkersConfig       `json:"workers"`
	RequestID     RequestIDConfig     `json:"request_id"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	// MaxMultipartMemory caps the in-memory part of multipart parsing
	MaxMultipartMemory int64 `json:"max_multipart_memory"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `json:"driver"`
}

// MongoConfig represents MongoDB configuration
type MongoConfig struct {
	URI                    string        `json:"uri"`
	Database               string        `json:"database"`
	VerificationCollection string        `json:"verification_collection"`
	DeliveryCollection     string        `json:"delivery_collection"`
	ConnectTimeout         time.Duration `json:"connect_timeout"`
}

// DatabaseConfig represents Postgres configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// RedisConfig configures the submission lock. An empty URL selects the
// in-process lock.
type RedisConfig struct {
	URL       string `json:"url"`
	KeyPrefix string `json:"key_prefix"`
}

// StorageConfig configures photo storage. An empty bucket keeps photos in memory.
type StorageConfig struct {
	Bucket          string        `json:"bucket"`
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	UsePathStyle    bool          `json:"use_path_style"`
	PublicBaseURL   string        `json:"public_base_url"`
	Folder          string        `json:"folder"`
	MaxPhotos       int           `json:"max_photos"`
	MaxPhotoBytes   int64         `json:"max_photo_bytes"`
	UploadTimeout   time.Duration `json:"upload_timeout"`
}

// CropDirectoryConfig points at the external crop/listing service
type CropDirectoryConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

// ChatraceConfig configures WhatsApp delivery
type ChatraceConfig struct {
	APIURL          string        `json:"api_url"`
	APIKey          string        `json:"api_key"`
	WhatsAppNumber  string        `json:"whatsapp_number"`
	ApprovalFlowID  string        `json:"approval_flow_id"`
	RejectionFlowID string        `json:"rejection_flow_id"`
	Timeout         time.Duration `json:"timeout"`
}

// Enabled reports whether WhatsApp delivery can be attempted
func (c ChatraceConfig) Enabled() bool {
	return c.APIKey != ""
}

// SMSConfig configures the SNS fallback channel
type SMSConfig struct {
	Enabled  bool   `json:"enabled"`
	Region   string `json:"region"`
	SenderID string `json:"sender_id"`
}

// KafkaConfig configures domain event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// AuthConfig configures reviewer authentication. An empty secret leaves the
// admin routes open.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// WorkersConfig configures background jobs
type WorkersConfig struct {
	RetrySchedule     string        `json:"retry_schedule"`
	RetryBatchSize    int           `json:"retry_batch_size"`
	MaxAttempts       int           `json:"max_attempts"`
	NotifyTimeout     time.Duration `json:"notify_timeout"`
	BackfillBatchSize int           `json:"backfill_batch_size"`
}

// RequestIDConfig configures requestId generation
type RequestIDConfig struct {
	Timezone    string `json:"timezone"`
	MaxAttempts int    `json:"max_attempts"`
}

// Location resolves the configured timezone, falling back to UTC
func (c RequestIDConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               5000,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       60 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxMultipartMemory: 16 << 20,
		},
		Store: StoreConfig{Driver: StoreMemory},
		Mongo: MongoConfig{
			Database:               "croptrust",
			VerificationCollection: "farm_verifications",
			DeliveryCollection:     "notification_deliveries",
			ConnectTimeout:         10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "croptrust_verifications",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Redis: RedisConfig{KeyPrefix: "verification:submit:"},
		Storage: StorageConfig{
			Folder:        "farm-verifications",
			MaxPhotos:     3,
			MaxPhotoBytes: 5 << 20,
			UploadTimeout: 30 * time.Second,
		},
		CropDirectory: CropDirectoryConfig{Timeout: 5 * time.Second},
		Chatrace: ChatraceConfig{
			APIURL:  "https://api.chatrace.com",
			Timeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "verification-events"},
		Workers: WorkersConfig{
			RetrySchedule:     "@every 5m",
			RetryBatchSize:    50,
			MaxAttempts:       5,
			NotifyTimeout:     15 * time.Second,
			BackfillBatchSize: 200,
		},
		RequestID: RequestIDConfig{Timezone: "Asia/Kolkata", MaxAttempts: 10},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	case StoreMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo store selected but MONGODB_URI is empty")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Storage.MaxPhotos <= 0 {
		return fmt.Errorf("storage.max_photos must be positive")
	}
	if c.Storage.MaxPhotoBytes <= 0 {
		return fmt.Errorf("storage.max_photo_bytes must be positive")
	}
	if c.RequestID.MaxAttempts <= 0 {
		return fmt.Errorf("request_id.max_attempts must be positive")
	}
	return nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")
	setInt(&config.Server.Port, "PORT")

	setString(&config.Store.Driver, "STORE_DRIVER")

	setString(&config.Mongo.URI, "MONGODB_URI")
	setString(&config.Mongo.Database, "MONGODB_DATABASE")

	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&config.Redis.URL, "REDIS_URL")

	setString(&config.Storage.Bucket, "S3_BUCKET")
	setString(&config.Storage.Region, "AWS_REGION")
	setString(&config.Storage.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.PublicBaseURL, "S3_PUBLIC_BASE_URL")
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Storage.UsePathStyle = b
		}
	}

	setString(&config.CropDirectory.BaseURL, "CROP_DIRECTORY_URL")
	setString(&config.CropDirectory.APIKey, "CROP_DIRECTORY_API_KEY")

	setString(&config.Chatrace.APIURL, "CHATRACE_API_URL")
	setString(&config.Chatrace.APIKey, "CHATRACE_API_KEY")
	setString(&config.Chatrace.WhatsAppNumber, "CHATRACE_WHATSAPP_NUMBER")
	setString(&config.Chatrace.ApprovalFlowID, "CHATRACE_FLOW_ID_APPROVAL")
	setString(&config.Chatrace.RejectionFlowID, "CHATRACE_FLOW_ID_REJECTION")

	if v := os.Getenv("SMS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SMS.Enabled = b
		}
	}
	setString(&config.SMS.SenderID, "SMS_SENDER_ID")
	if config.SMS.Region == "" {
		config.SMS.Region = config.Storage.Region
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = splitList(brokers)
	}
	setString(&config.Kafka.Topic, "KAFKA_TOPIC")

	setString(&config.Auth.JWTSecret, "JWT_SECRET")

	setString(&config.RequestID.Timezone, "REQUEST_ID_TIMEZONE")
	setString(&config.Logging.Level, "LOG_LEVEL")
	if config.Logging.Level == "debug" {
		config.Logging.Development = true
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
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

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
