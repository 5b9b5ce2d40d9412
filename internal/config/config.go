package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "wisefido-carehub/common/config"
)

// Config wisefido-carehub 配置
type Config struct {
	HTTP struct {
		Addr string
	}

	Redis commoncfg.RedisConfig

	// 报警归档库（可选）
	DBEnabled bool
	Database  commoncfg.DatabaseConfig

	// 遥测通道（Adafruit IO MQTT）
	Telemetry struct {
		MQTT          commoncfg.MQTTConfig
		FallFeed      string        // 跌倒报警 feed，如 "fall-alerts"
		MedsFeed      string        // 用药提醒 feed，如 "med-alerts"
		TeardownDelay time.Duration // 发布后延迟断开连接
	}

	// 消息通道（Telegram Bot）
	Telegram struct {
		APIURL   string
		BotToken string
		Timeout  time.Duration
	}

	// 用药提醒调度
	Scheduler struct {
		PollInterval time.Duration // 轮询间隔，默认 10秒
		ClearDelay   time.Duration // 遥测复位延迟，默认 30秒
		Timezone     string        // 本地时区，如 "Europe/Moscow"；空表示系统时区
	}

	// 报警流（Redis Streams），空表示不发布
	AlertStream string

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "carehub"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Telemetry.MQTT.Broker = "wss://io.adafruit.com:443"
	cfg.Telemetry.MQTT.ClientID = "wisefido-carehub"
	cfg.Telemetry.MQTT.LoadFromEnv("ADAFRUIT")
	cfg.Telemetry.FallFeed = getEnv("TELEMETRY_FEED_FALL", "fall-alerts")
	cfg.Telemetry.MedsFeed = getEnv("TELEMETRY_FEED_MEDS", "med-alerts")

	cfg.Telegram.APIURL = getEnv("TELEGRAM_API_URL", "https://api.telegram.org")
	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", "")

	cfg.Scheduler.Timezone = getEnv("TIMEZONE", "")
	cfg.AlertStream = getEnv("ALERT_STREAM", "carehub:alerts:stream")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	var err error
	if cfg.Telemetry.TeardownDelay, err = parseDuration("TELEMETRY_TEARDOWN_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Telegram.Timeout, err = parseDuration("TELEGRAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Scheduler.PollInterval, err = parseDuration("SCHEDULER_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Scheduler.ClearDelay, err = parseDuration("SCHEDULER_CLEAR_DELAY", 30*time.Second); err != nil {
		return nil, err
	}

	// 分钟级精度：轮询间隔超过 60 秒会漏掉提醒
	if cfg.Scheduler.PollInterval <= 0 || cfg.Scheduler.PollInterval > time.Minute {
		return nil, fmt.Errorf("SCHEDULER_POLL_INTERVAL must be in (0, 1m], got %s", cfg.Scheduler.PollInterval)
	}

	return cfg, nil
}

// Location 解析调度使用的时区
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// parseDuration 支持 "30s" 形式，也兼容纯数字（按秒）
func parseDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs := parseInt(v, -1); secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
