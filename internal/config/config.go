package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"staybook/internal/models"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig         `yaml:"app"`
	Database   DatabaseConfig    `yaml:"database"`
	Redis      RedisConfig       `yaml:"redis"`
	Locking    LockingConfig     `yaml:"locking"`
	Booking    BookingConfig     `yaml:"booking"`
	Sweeper    SweeperConfig     `yaml:"sweeper"`
	Backup     BackupConfig      `yaml:"backup"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
	Logging    LoggingConfig     `yaml:"logging"`
	API        APIConfig         `yaml:"api"`
	Telegram   TelegramConfig    `yaml:"telegram"`
	Google     GoogleConfig      `yaml:"google"`
	Exports    ExportConfig      `yaml:"exports"`
	Homestays  []models.Homestay `yaml:"homestays"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// LockingConfig selects the per-homestay lock used around the reserve step.
type LockingConfig struct {
	Backend       string `yaml:"backend"` // redis | memory
	TTLSeconds    int    `yaml:"ttl_seconds"`
	WaitTimeoutMS int    `yaml:"wait_timeout_ms"`
}

type BookingConfig struct {
	Currency               string   `yaml:"currency"`
	PaymentWindowMinutes   int      `yaml:"payment_window_minutes"`
	WeekendDays            []string `yaml:"weekend_days"`
	WeeklyThresholdNights  int      `yaml:"weekly_threshold_nights"`
	MonthlyThresholdNights int      `yaml:"monthly_threshold_nights"`
	StrictPricing          bool     `yaml:"strict_pricing"`
}

type SweeperConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// TelegramConfig enables host notifications when BotToken is set.
type TelegramConfig struct {
	BotToken      string  `yaml:"bot_token"`
	NotifyChatIDs []int64 `yaml:"notify_chat_ids"`
	// DigestSchedule отправка списка завтрашних заездов
	DigestSchedule string `yaml:"digest_schedule"`
	Debug          bool   `yaml:"debug"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
	// повторы синхронизации с таблицей; 0 = значения воркера по умолчанию
	SyncMaxRetries        int `yaml:"sync_max_retries"`
	SyncRetryDelaySeconds int `yaml:"sync_retry_delay_seconds"`
	SyncMaxDelaySeconds   int `yaml:"sync_max_delay_seconds"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Locking.Backend {
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address is required for redis locking")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown locking backend %q", c.Locking.Backend)
	}

	if _, err := c.Booking.Weekend(); err != nil {
		return err
	}
	if c.Booking.WeeklyThresholdNights >= c.Booking.MonthlyThresholdNights {
		return fmt.Errorf("weekly threshold (%d) must be below monthly threshold (%d)",
			c.Booking.WeeklyThresholdNights, c.Booking.MonthlyThresholdNights)
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if c.Sweeper.Enabled {
		if _, err := parser.Parse(c.Sweeper.Schedule); err != nil {
			return fmt.Errorf("invalid sweeper schedule %q: %w", c.Sweeper.Schedule, err)
		}
	}
	if c.Backup.Enabled {
		if _, err := parser.Parse(c.Backup.Schedule); err != nil {
			return fmt.Errorf("invalid backup schedule %q: %w", c.Backup.Schedule, err)
		}
	}

	if c.Telegram.BotToken != "" {
		if len(c.Telegram.NotifyChatIDs) == 0 {
			return errors.New("telegram notify_chat_ids are required when bot_token is set")
		}
		if _, err := parser.Parse(c.Telegram.DigestSchedule); err != nil {
			return fmt.Errorf("invalid telegram digest schedule %q: %w", c.Telegram.DigestSchedule, err)
		}
	}

	if c.Google.SyncMaxRetries < 0 || c.Google.SyncRetryDelaySeconds < 0 || c.Google.SyncMaxDelaySeconds < 0 {
		return errors.New("google sync retry settings must not be negative")
	}

	return ValidateHomestays(c.Homestays)
}

func ValidateHomestays(homestays []models.Homestay) error {
	ids := make(map[int64]bool)
	for _, h := range homestays {
		if h.ID == 0 {
			return fmt.Errorf("homestay '%s' has invalid ID 0", h.Name)
		}
		if ids[h.ID] {
			return fmt.Errorf("duplicate homestay ID found: %d", h.ID)
		}
		ids[h.ID] = true
		if h.BasePrice <= 0 {
			return fmt.Errorf("homestay %d: base_price must be positive", h.ID)
		}
		if h.MaxNights > 0 && h.MinNights > h.MaxNights {
			return fmt.Errorf("homestay %d: min_nights exceeds max_nights", h.ID)
		}
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekend returns the nights priced at the weekend rate.
func (b BookingConfig) Weekend() ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(b.WeekendDays))
	for _, name := range b.WeekendDays {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekend day %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}

func (b BookingConfig) PaymentWindow() time.Duration {
	return time.Duration(b.PaymentWindowMinutes) * time.Minute
}

// StrictPricing reports whether a negative total should panic instead of being clamped.
func (c *Config) StrictPricing() bool {
	return c.Booking.StrictPricing || c.App.Environment == "development"
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "staybook"
	}
	if c.App.Environment == "" {
		c.App.Environment = "production"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = models.RateLimitRPS
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = models.RateLimitBurst
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Locking.Backend == "" {
		if c.Redis.Address != "" {
			c.Locking.Backend = "redis"
		} else {
			c.Locking.Backend = "memory"
		}
	}
	if c.Locking.TTLSeconds == 0 {
		c.Locking.TTLSeconds = 10
	}
	if c.Locking.WaitTimeoutMS == 0 {
		c.Locking.WaitTimeoutMS = 3000
	}

	// Booking defaults
	if c.Booking.Currency == "" {
		c.Booking.Currency = "IDR"
	}
	if c.Booking.PaymentWindowMinutes == 0 {
		c.Booking.PaymentWindowMinutes = models.DefaultPaymentWindowMinutes
	}
	if len(c.Booking.WeekendDays) == 0 {
		c.Booking.WeekendDays = []string{"friday", "saturday"}
	}
	if c.Booking.WeeklyThresholdNights == 0 {
		c.Booking.WeeklyThresholdNights = models.DefaultWeeklyThresholdNights
	}
	if c.Booking.MonthlyThresholdNights == 0 {
		c.Booking.MonthlyThresholdNights = models.DefaultMonthlyThresholdNights
	}

	if c.Sweeper.Schedule == "" {
		c.Sweeper.Schedule = "@every 1m"
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 0 3 * * *"
	}
	if c.Telegram.DigestSchedule == "" {
		c.Telegram.DigestSchedule = "0 0 18 * * *"
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
