package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const (
	DefaultRPCURL          = "https://rpc.sepolia-api.lisk.com"
	DefaultContractAddress = "0xa4e64aabcae48a5f4c45d84dd2493b9fb3f81d84"
)

type Config struct {
	HTTP_PORT string `env:"HTTP_PORT"`
	LOG_LEVEL string `env:"LOG_LEVEL"`

	RPC_URL          string         `env:"RPC_URL"`
	CONTRACT_ADDRESS common.Address `env:"CONTRACT_ADDRESS"`
	// hex private key; empty means the service runs read-only
	SIGNER_KEY      string        `env:"SIGNER_KEY"`
	CONFIRM_TIMEOUT time.Duration `env:"CONFIRM_TIMEOUT"`
	READ_TIMEOUT    time.Duration `env:"READ_TIMEOUT"`

	KAFKA_BROKERS      string `env:"KAFKA_BROKERS"`
	KAFKA_TOPIC        string `env:"KAFKA_TOPIC"`
	KAFKA_LEDGER_TOPIC string `env:"KAFKA_LEDGER_TOPIC"`
	KAFKA_GROUP_ID     string `env:"KAFKA_GROUP_ID"`

	RECENT_LIMIT        int `env:"RECENT_LIMIT"`
	WRITE_REGISTRY_SIZE int `env:"WRITE_REGISTRY_SIZE"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP_PORT:          getEnv("HTTP_PORT", "8080"),
		LOG_LEVEL:          getEnv("LOG_LEVEL", "info"),
		RPC_URL:            getEnv("RPC_URL", DefaultRPCURL),
		SIGNER_KEY:         os.Getenv("SIGNER_KEY"),
		KAFKA_BROKERS:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		KAFKA_TOPIC:        getEnv("KAFKA_TOPIC", "shipment-writes"),
		KAFKA_LEDGER_TOPIC: getEnv("KAFKA_LEDGER_TOPIC", "blockroute-events"),
		KAFKA_GROUP_ID:     getEnv("KAFKA_GROUP_ID", "blockroute-client"),
	}

	addr := getEnv("CONTRACT_ADDRESS", DefaultContractAddress)
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("CONTRACT_ADDRESS: %q is not a hex address", addr)
	}
	cfg.CONTRACT_ADDRESS = common.HexToAddress(addr)

	var err error
	if cfg.CONFIRM_TIMEOUT, err = time.ParseDuration(getEnv("CONFIRM_TIMEOUT", "2m")); err != nil {
		return nil, fmt.Errorf("CONFIRM_TIMEOUT: %w", err)
	}
	if cfg.CONFIRM_TIMEOUT <= 0 {
		return nil, fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	if cfg.READ_TIMEOUT, err = time.ParseDuration(getEnv("READ_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("READ_TIMEOUT: %w", err)
	}
	if cfg.READ_TIMEOUT <= 0 {
		return nil, fmt.Errorf("READ_TIMEOUT must be positive")
	}
	if cfg.RECENT_LIMIT, err = getPositiveInt("RECENT_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.WRITE_REGISTRY_SIZE, err = getPositiveInt("WRITE_REGISTRY_SIZE", 1024); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getPositiveInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be >= 1, got %d", key, n)
	}
	return n, nil
}
