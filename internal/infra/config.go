package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	BaseDir         string
	DataDir         string
	BackupsDir      string
	LogsDir         string
	WWWDir          string
	ManualBackupDir string

	RouterDBPath string
	LocalDBPath  string

	SyncWindowHours     int
	DailyQuotaGB        float64
	WeeklyQuotaGB       float64
	MonthlyQuotaGB      float64
	DeviceHighUsageGB   float64
	BackupRetentionDays int
	BackupPrefix        string
	Location            *time.Location

	MonitorSchedule   string
	BackupSchedule    string
	NameLookupTimeout time.Duration
	NameCacheTTL      time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	AuthRateLimit    int
}

// usbMarkers identify a mounted drive that carries a copy of the dashboard.
var usbMarkers = []string{"skyhero.py", "system", "www"}

// usbRoots are scanned in order for a drive holding usbMarkers.
var usbRoots = []string{"/tmp/mnt", "/mnt", "/media"}

const fallbackManualBackupDir = "/tmp/mnt/ym/superman-backups"

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	base := getEnv("SKYHERO_BASE_DIR", cwd)

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8082"),
		BaseDir:             base,
		DataDir:             getEnv("SKYHERO_DATA_DIR", filepath.Join(base, "data")),
		BackupsDir:          getEnv("SKYHERO_BACKUPS_DIR", filepath.Join(base, "db_backups")),
		LogsDir:             getEnv("SKYHERO_LOGS_DIR", filepath.Join(base, "logs")),
		WWWDir:              getEnv("SKYHERO_WWW_DIR", filepath.Join(base, "www")),
		ManualBackupDir:     getEnv("SKYHERO_MANUAL_BACKUP_DIR", ""),
		RouterDBPath:        getEnv("ROUTER_DB_PATH", "/jffs/.sys/TrafficAnalyzer/TrafficAnalyzer.db"),
		LocalDBPath:         getEnv("LOCAL_DB_PATH", filepath.Join(base, "traffic.db")),
		SyncWindowHours:     getEnvInt("SYNC_WINDOW_HOURS", 48),
		DailyQuotaGB:        getEnvFloat("DAILY_QUOTA_GB", 50),
		WeeklyQuotaGB:       getEnvFloat("WEEKLY_QUOTA_GB", 200),
		MonthlyQuotaGB:      getEnvFloat("MONTHLY_QUOTA_GB", 500),
		DeviceHighUsageGB:   getEnvFloat("DEVICE_HIGH_USAGE_ALERT_GB", 5),
		BackupRetentionDays: getEnvInt("BACKUP_RETENTION_DAYS", 60),
		BackupPrefix:        getEnv("BACKUP_PREFIX", "TrafficAnalyzer"),
		MonitorSchedule:     getEnv("MONITOR_SCHEDULE", "*/5 * * * *"),
		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "0 3 * * *"),
		NameLookupTimeout:   time.Second * time.Duration(getEnvInt("NAME_LOOKUP_TIMEOUT_SECONDS", 5)),
		NameCacheTTL:        time.Second * time.Duration(getEnvInt("NAME_CACHE_TTL_SECONDS", 60)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		AuthRateLimit:       getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 10),
	}

	if cfg.ManualBackupDir == "" {
		cfg.ManualBackupDir = detectManualBackupDir(usbRoots)
	}

	tz := getEnv("REPORT_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	if cfg.SyncWindowHours <= 0 {
		return nil, fmt.Errorf("SYNC_WINDOW_HOURS must be positive")
	}
	if cfg.DailyQuotaGB <= 0 || cfg.WeeklyQuotaGB <= 0 || cfg.MonthlyQuotaGB <= 0 {
		return nil, fmt.Errorf("quotas must be positive")
	}
	if cfg.BackupRetentionDays <= 0 {
		return nil, fmt.Errorf("BACKUP_RETENTION_DAYS must be positive")
	}
	if strings.ContainsAny(cfg.BackupPrefix, `/\`) || cfg.BackupPrefix == "" {
		return nil, fmt.Errorf("BACKUP_PREFIX %q is not a valid file prefix", cfg.BackupPrefix)
	}

	return cfg, nil
}

// RestoreLogPath is the append-only restore audit log.
func (c *Config) RestoreLogPath() string {
	return filepath.Join(c.LogsDir, "db_restore_history.log")
}

// RestoreMarkerPath is the single-shot restore notice read by the dashboard.
func (c *Config) RestoreMarkerPath() string {
	return filepath.Join(c.DataDir, "last_restore.txt")
}

// DailyDir holds one snapshot document per calendar day.
func (c *Config) DailyDir() string {
	return filepath.Join(c.DataDir, "daily_json")
}

// PeriodDir holds period and monthly report documents.
func (c *Config) PeriodDir() string {
	return filepath.Join(c.DataDir, "period_data")
}

func detectManualBackupDir(roots []string) string {
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(root, e.Name())
			if hasAll(dir, usbMarkers) {
				return filepath.Join(dir, "superman-backups")
			}
		}
	}
	return fallbackManualBackupDir
}

func hasAll(dir string, names []string) bool {
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			return false
		}
	}
	return true
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
