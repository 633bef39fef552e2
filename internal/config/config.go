package config

import (
	"fmt"
	"os"
	"strconv"

	"wisefido-emergency/internal/common/config"

	"gopkg.in/yaml.v3"
)

// Config 紧急报警服务配置
// 优先级：环境变量 > EMERGENCY_CONFIG_FILE 指定的 YAML 文件 > 默认值
type Config struct {
	Database config.DatabaseConfig `yaml:"database"`
	Redis    config.RedisConfig    `yaml:"redis"`
	MQTT     config.MQTTConfig     `yaml:"mqtt"`

	Emergency struct {
		PatientID string `yaml:"patient_id"`

		// 轮询配置
		PollInterval              int `yaml:"poll_interval"`               // 无活动检测间隔（秒），默认 30
		ConnectivityCheckInterval int `yaml:"connectivity_check_interval"` // 网络检测间隔（秒），默认 10

		OfflineQueueKey string `yaml:"offline_queue_key"`

		Topics struct {
			Prefix string `yaml:"prefix"` // 设备事件与报警发布主题前缀
		} `yaml:"topics"`

		// 短信/电话网关
		WebhookURL     string `yaml:"webhook_url"`
		WebhookTimeout int    `yaml:"webhook_timeout"` // 秒

		// 周报
		WeeklyRolloverCron string `yaml:"weekly_rollover_cron"`
		ReportDir          string `yaml:"report_dir"`
	} `yaml:"emergency"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 默认值
	cfg.Database.Driver = "sqlite3"
	cfg.Database.Path = "data/emergency.db"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.ClientID = "wisefido-emergency"
	cfg.MQTT.QoS = 1

	cfg.Emergency.PatientID = "default"
	cfg.Emergency.PollInterval = 30
	cfg.Emergency.ConnectivityCheckInterval = 10
	cfg.Emergency.OfflineQueueKey = "emergency:offline:alerts"
	cfg.Emergency.Topics.Prefix = "wisefido/companion"
	cfg.Emergency.WebhookTimeout = 10
	cfg.Emergency.WeeklyRolloverCron = "0 0 * * 1"
	cfg.Emergency.ReportDir = "data/reports"

	cfg.Metrics.Addr = ":9102"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	if path := os.Getenv("EMERGENCY_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// 环境变量覆盖
	cfg.Database.LoadFromEnv("DB")
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Emergency.PatientID = getEnv("PATIENT_ID", cfg.Emergency.PatientID)
	cfg.Emergency.PollInterval = getEnvInt("POLL_INTERVAL", cfg.Emergency.PollInterval)
	cfg.Emergency.ConnectivityCheckInterval = getEnvInt("CONNECTIVITY_CHECK_INTERVAL", cfg.Emergency.ConnectivityCheckInterval)
	cfg.Emergency.OfflineQueueKey = getEnv("OFFLINE_QUEUE_KEY", cfg.Emergency.OfflineQueueKey)
	cfg.Emergency.Topics.Prefix = getEnv("TOPIC_PREFIX", cfg.Emergency.Topics.Prefix)
	cfg.Emergency.WebhookURL = getEnv("WEBHOOK_URL", cfg.Emergency.WebhookURL)
	cfg.Emergency.WebhookTimeout = getEnvInt("WEBHOOK_TIMEOUT", cfg.Emergency.WebhookTimeout)
	cfg.Emergency.WeeklyRolloverCron = getEnv("WEEKLY_ROLLOVER_CRON", cfg.Emergency.WeeklyRolloverCron)
	cfg.Emergency.ReportDir = getEnv("REPORT_DIR", cfg.Emergency.ReportDir)

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	if cfg.Emergency.PatientID == "" {
		return nil, fmt.Errorf("patient id is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
