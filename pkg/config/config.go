package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type APIConfig struct {
	Port      string
	DBDSN     string
	RMQURL    string
	Queue     string
	RedisAddr string
	JWTSecret string
}

type WorkerConfig struct {
	DBDSN        string
	RMQURL       string
	Queue        string
	MetricsPort  string
	Concurrency  int
	ScanInterval time.Duration
}

var (
	API    APIConfig
	Worker WorkerConfig
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("required env %s is not set", k)
	}
	return v
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func MustLoadAPI() {
	_ = godotenv.Load()
	API = APIConfig{
		Port:      getenv("PORT", "8080"),
		DBDSN:     mustEnv("DB_DSN"),
		RMQURL:    mustEnv("RMQ_URL"),
		Queue:     getenv("QUEUE", "dispatch_jobs"),
		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
		JWTSecret: mustEnv("JWT_SECRET"),
	}
}

func MustLoadWorker() {
	_ = godotenv.Load()
	Worker = WorkerConfig{
		DBDSN:        mustEnv("DB_DSN"),
		RMQURL:       mustEnv("RMQ_URL"),
		Queue:        getenv("QUEUE", "dispatch_jobs"),
		MetricsPort:  getenv("METRICS_PORT", "9090"),
		Concurrency:  getenvInt("DISPATCH_CONCURRENCY", 8),
		ScanInterval: getenvDuration("SCAN_INTERVAL", 30*time.Second),
	}
}
