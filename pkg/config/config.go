// Package config loads service configuration from the environment, with an
// optional .env file for local development. Values are passed explicitly to
// constructors; nothing reads the environment after startup.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RPCURL          string
	ContractAddress string
	ChainID         int64
	AdminAddress    string

	GatewayPort    string
	RegistryPort   string
	RegistryURL    string
	RescanInterval time.Duration

	GatewayKeyPath string
	SensorKeyPath  string
	SensorInterval time.Duration
	StallThreshold time.Duration

	CallTimeout time.Duration
	DatabaseURL string
}

// Load reads the environment. A .env file in the working directory is applied
// first if present; real environment variables win over it.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		RPCURL:          getenv("RPC_URL", "http://127.0.0.1:8545"),
		ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
		ChainID:         getint("CHAIN_ID", 31337),
		AdminAddress:    os.Getenv("ADMIN_ADDRESS"),

		GatewayPort:    getenv("GATEWAY_PORT", "8080"),
		RegistryPort:   getenv("REGISTRY_PORT", "8081"),
		RegistryURL:    getenv("REGISTRY_URL", "http://127.0.0.1:8081"),
		RescanInterval: getdur("RESCAN_INTERVAL", 5*time.Minute),

		GatewayKeyPath: os.Getenv("GATEWAY_KEY_PATH"),
		SensorKeyPath:  os.Getenv("SENSOR_KEY_PATH"),
		SensorInterval: getdur("SENSOR_INTERVAL", time.Minute),
		StallThreshold: getdur("STALL_THRESHOLD", 10*time.Minute),

		CallTimeout: getdur("CALL_TIMEOUT", 15*time.Second),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
