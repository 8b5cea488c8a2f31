package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/tapgate.db"

	// Auth
	JWTSecret       string
	TokenTTLMinutes int

	// Verification engine
	PromptWindowMinutes int // recency window; default 15
	SessionDefaultUses  int
	SeasonalDefaultUses int
	AllAccessCategory   string

	// Prompt reaper
	ReapIntervalMinutes int // negative disables
}

func FromEnv() Config {
	// Best-effort .env for dev setups; real deployments set env vars.
	_ = godotenv.Load()

	addr := getenvDefault("TAPGATE_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("TAPGATE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   getenvDefault("TAPGATE_DB_PATH", "./data/tapgate.db"),

		JWTSecret:       getenvDefault("TAPGATE_JWT_SECRET", "dev-secret-change-me"),
		TokenTTLMinutes: getenvInt("TAPGATE_TOKEN_TTL_MINUTES", 720),

		PromptWindowMinutes: getenvInt("TAPGATE_PROMPT_WINDOW_MINUTES", 15),
		SessionDefaultUses:  getenvInt("TAPGATE_SESSION_DEFAULT_USES", 10),
		SeasonalDefaultUses: getenvInt("TAPGATE_SEASONAL_DEFAULT_USES", 30),
		AllAccessCategory:   getenvDefault("TAPGATE_ALL_ACCESS_CATEGORY", "All Access"),

		ReapIntervalMinutes: getenvInt("TAPGATE_REAP_INTERVAL_MINUTES", 5),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
