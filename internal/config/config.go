package config

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds runtime configuration for the API service.
type Config struct {
	ListenAddr         string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	DefaultLimit       int
	DefaultStatsPeriod time.Duration
	DefaultInterval    time.Duration
	DefaultOrg         string
	LogLevel           string

	DBEnabled      bool
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBConnTimeout  time.Duration
	DBQueryTimeout time.Duration

	FeatureStorePath string
	DefaultFeatures  []string

	ProfilingEnabled bool
	ProfilingURL     string
	ProfilingTimeout time.Duration
	ProfilingRetries int
	ProfilingToken   string

	ExportMaxRows int
}

// FromEnv loads configuration from environment variables with sensible defaults.
func FromEnv() Config {
	loadConfigDefaultsFromFile()
	loadSecretsDefaultsFromFile()

	return Config{
		ListenAddr:         getEnv("APP_LISTEN_ADDR", ":8080"),
		ReadTimeout:        time.Duration(getEnvInt("APP_READ_TIMEOUT_SEC", 10)) * time.Second,
		WriteTimeout:       time.Duration(getEnvInt("APP_WRITE_TIMEOUT_SEC", 30)) * time.Second,
		ShutdownTimeout:    time.Duration(getEnvInt("APP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		DefaultLimit:       getEnvInt("APP_DEFAULT_LIMIT", 25),
		DefaultStatsPeriod: getEnvDuration("APP_DEFAULT_STATS_PERIOD", 24*time.Hour),
		DefaultInterval:    getEnvDuration("APP_DEFAULT_INTERVAL", time.Hour),
		DefaultOrg:         getEnv("APP_DEFAULT_ORG", "default"),
		LogLevel:           getEnv("APP_LOG_LEVEL", "info"),
		DBEnabled:          getEnvBool("APP_DB_ENABLED", false),
		DBHost:             getEnv("APP_DB_HOST", "127.0.0.1"),
		DBPort:             getEnvInt("APP_DB_PORT", 3306),
		DBUser:             getEnv("APP_DB_USER", "perf"),
		DBPassword:         getEnv("APP_DB_PASSWORD", "demo"),
		DBName:             getEnv("APP_DB_NAME", "events"),
		DBConnTimeout:      time.Duration(getEnvInt("APP_DB_CONN_TIMEOUT_SEC", 5)) * time.Second,
		DBQueryTimeout:     time.Duration(getEnvInt("APP_DB_QUERY_TIMEOUT_SEC", 10)) * time.Second,
		FeatureStorePath:   getEnv("APP_FEATURE_STORE_SQLITE_PATH", ""),
		DefaultFeatures:    getEnvList("APP_DEFAULT_FEATURES", nil),
		ProfilingEnabled:   getEnvBool("APP_PROFILING_ENABLED", false),
		ProfilingURL:       getEnv("APP_PROFILING_SERVICE_URL", "http://127.0.0.1:8085"),
		ProfilingTimeout:   time.Duration(getEnvInt("APP_PROFILING_TIMEOUT_SEC", 30)) * time.Second,
		ProfilingRetries:   getEnvInt("APP_PROFILING_RETRIES", 3),
		ProfilingToken:     getEnv("APP_PROFILING_TOKEN", ""),
		ExportMaxRows:      getEnvInt("APP_EXPORT_MAX_ROWS", 1000),
	}
}

func loadConfigDefaultsFromFile() {
	bootstrapCandidates := []string{
		"./resource-summary-ui.env",
		"/etc/default/resource-summary-ui",
	}

	for _, candidate := range bootstrapCandidates {
		abs := candidate
		if !filepath.IsAbs(candidate) {
			if wd, err := os.Getwd(); err == nil {
				abs = filepath.Join(wd, candidate)
			}
		}
		_ = applyEnvDefaultsFromFile(abs)
	}

	candidates := make([]string, 0, 2)
	if explicit := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, "/etc/resource-summary-ui/config.env")

	for _, candidate := range candidates {
		abs := candidate
		if !filepath.IsAbs(candidate) {
			if wd, err := os.Getwd(); err == nil {
				abs = filepath.Join(wd, candidate)
			}
		}

		if err := applyEnvDefaultsFromFile(abs); err == nil {
			return
		}
	}
}

func loadSecretsDefaultsFromFile() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("APP_SECRETS_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if credDir := strings.TrimSpace(os.Getenv("CREDENTIALS_DIRECTORY")); credDir != "" {
		credName := strings.TrimSpace(os.Getenv("APP_SECRETS_CREDENTIAL_NAME"))
		if credName == "" {
			credName = "app-secrets"
		}
		candidates = append(candidates, filepath.Join(credDir, credName))
	}
	candidates = append(candidates, "/etc/resource-summary-ui/secrets.env")
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := applyEnvDefaultsFromFile(candidate); err == nil {
			return
		}
	}
}

func applyEnvDefaultsFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if key == "" {
			continue
		}

		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}

		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}

	return scanner.Err()
}

// MySQLDSN returns a mysql driver DSN with safe defaults for TCP access.
func (c Config) MySQLDSN() string {
	dsn := mysql.NewConfig()
	dsn.User = c.DBUser
	dsn.Passwd = c.DBPassword
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort))
	dsn.DBName = c.DBName
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Timeout = c.DBConnTimeout
	dsn.ReadTimeout = c.DBQueryTimeout
	dsn.WriteTimeout = c.DBQueryTimeout
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvList(key string, def []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		out := make([]string, 0, len(def))
		for _, d := range def {
			d = strings.TrimSpace(d)
			if d != "" {
				out = append(out, d)
			}
		}
		return out
	}

	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
