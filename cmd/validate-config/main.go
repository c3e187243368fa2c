package main

import (
	"fmt"
	"os"

	"github.com/vladimiradmaev/wellnest/internal/config"
)

func main() {
	fmt.Println("🔍 Checking configuration...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration:\n%v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Configuration is invalid:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Configuration is valid!")
	fmt.Printf("📋 Configuration details:\n")
	fmt.Printf("  - Store Driver: %s\n", cfg.Store.Driver)
	switch cfg.Store.Driver {
	case "postgres":
		fmt.Printf("  - DB Host: %s\n", cfg.Store.Postgres.Host)
		fmt.Printf("  - DB Port: %s\n", cfg.Store.Postgres.Port)
		fmt.Printf("  - DB User: %s\n", cfg.Store.Postgres.User)
		fmt.Printf("  - DB Name: %s\n", cfg.Store.Postgres.DBName)
	case "mongo":
		fmt.Printf("  - Mongo Database: %s\n", cfg.Store.Mongo.Database)
	case "sqlite":
		fmt.Printf("  - SQLite Path: %s\n", cfg.Store.SQLite.Path)
	}
	fmt.Printf("  - HTTP Address: %s\n", cfg.HTTP.Addr)
	fmt.Printf("  - Redis Address: %s\n", orUnset(cfg.Redis.Addr))
	fmt.Printf("  - Telegram Token: %s\n", maskToken(cfg.Telegram.Token))
	fmt.Printf("  - Gemini API Key: %s\n", maskToken(cfg.AI.GeminiAPIKey))
	fmt.Printf("  - OpenAI API Key: %s\n", maskToken(cfg.AI.OpenAIAPIKey))
	fmt.Printf("  - Fitbit Client ID: %s\n", maskToken(cfg.Fitbit.ClientID))
	fmt.Printf("  - Fitbit Sync Interval: %v\n", cfg.Fitbit.SyncInterval)
	fmt.Printf("  - LibreLink URL: %s\n", orUnset(cfg.LibreLink.URL))
	fmt.Printf("  - MQTT Broker: %s\n", orUnset(cfg.MQTT.Broker))
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)
	if cfg.DevFallbackOwner != "" {
		fmt.Printf("⚠️  DEV_FALLBACK_OWNER is set to %q, do not use this in production\n", cfg.DevFallbackOwner)
	}
}

func maskToken(token string) string {
	if token == "" {
		return "<not set>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func orUnset(v string) string {
	if v == "" {
		return "<not set>"
	}
	return v
}
