package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time is used for interval and timeout settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values (database, feed credentials, JWT
// secret) are enforced by must(); operational tunables fall back to sensible
// defaults so a minimal .env is enough to run the service.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify operator JWTs on admin routes

	DBMaxConns     int           // connection pool ceiling (open and idle)
	DBConnLifetime time.Duration // recycle connections older than this

	FeedHost string // FTP host of the upstream cruise feed
	FeedPort string // FTP port (usually 21)
	FeedUser string // FTP username issued by the feed provider
	FeedPass string // FTP password

	FeedPoolSize       int           // fixed number of pooled feed connections (3-5)
	FeedAcquireTimeout time.Duration // how long Acquire waits for a free connection
	FeedMaxFileBytes   int64         // downloads larger than this are treated as failures
	BreakerThreshold   int           // consecutive connection failures before the breaker opens
	BreakerCooldown    time.Duration // how long the breaker stays open before a trial request

	SyncThreshold     int           // at or below this cruise count a webhook is processed inline
	MegaBatchSize     int           // hard ceiling on cruises refreshed in one bulk run
	DiscoverMonths    int           // how many months of feed directories discovery walks
	SchedulerInterval time.Duration // how often the scheduler scans for pending lines
	MaintenanceEvery  time.Duration // interval for trend recompute and past-sailing sweep
	LockMaxAge        time.Duration // a sync lock older than this is considered abandoned
	DedupeWindow      time.Duration // window in which duplicate webhook notifications are dropped
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		DBMaxConns:     atoi(getenv("DB_MAX_CONNS", "25")),
		DBConnLifetime: parseDur(getenv("DB_CONN_LIFETIME", "30m")),

		FeedHost: must("FEED_FTP_HOST"),
		FeedPort: getenv("FEED_FTP_PORT", "21"),
		FeedUser: must("FEED_FTP_USER"),
		FeedPass: must("FEED_FTP_PASS"),

		FeedPoolSize:       atoi(getenv("FEED_POOL_SIZE", "4")),
		FeedAcquireTimeout: parseDur(getenv("FEED_ACQUIRE_TIMEOUT", "30s")),
		FeedMaxFileBytes:   int64(atoi(getenv("FEED_MAX_FILE_BYTES", "5242880"))),
		BreakerThreshold:   atoi(getenv("FEED_BREAKER_THRESHOLD", "5")),
		BreakerCooldown:    parseDur(getenv("FEED_BREAKER_COOLDOWN", "60s")),

		SyncThreshold:     atoi(getenv("SYNC_INLINE_THRESHOLD", "100")),
		MegaBatchSize:     atoi(getenv("SYNC_MEGA_BATCH", "500")),
		DiscoverMonths:    atoi(getenv("SYNC_DISCOVER_MONTHS", "3")),
		SchedulerInterval: parseDur(getenv("SYNC_SCHEDULER_INTERVAL", "60s")),
		MaintenanceEvery:  parseDur(getenv("SYNC_MAINTENANCE_INTERVAL", "6h")),
		LockMaxAge:        parseDur(getenv("SYNC_LOCK_MAX_AGE", "30m")),
		DedupeWindow:      parseDur(getenv("WEBHOOK_DEDUPE_WINDOW", "60s")),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the value of an environment variable or the provided
// default when the variable is unset or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
