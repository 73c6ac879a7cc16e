package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quickdrawgg/duels/go/internal/duel/orchestrator"
)

// Config is the server configuration, loaded from an optional yaml file
// with environment overrides for deployment.
type Config struct {
	Port string     `yaml:"port"`
	Game GameConfig `yaml:"game"`
}

// GameConfig is the duel tuning in milliseconds, matching the units the
// wire protocol uses.
type GameConfig struct {
	CountdownMs             int64 `yaml:"countdown_ms"`
	DrawDelayMinMs          int64 `yaml:"draw_delay_min_ms"`
	DrawDelayMaxMs          int64 `yaml:"draw_delay_max_ms"`
	HandsReadyGraceMs       int64 `yaml:"hands_ready_grace_ms"`
	SimultaneityThresholdMs int64 `yaml:"simultaneity_threshold_ms"`
	RoomMaxAgeMs            int64 `yaml:"room_max_age_ms"`
	CleanupIntervalMs       int64 `yaml:"cleanup_interval_ms"`
}

func defaultConfig() *Config {
	game := orchestrator.DefaultConfig()
	return &Config{
		Port: "3001",
		Game: GameConfig{
			CountdownMs:             game.CountdownDuration.Milliseconds(),
			DrawDelayMinMs:          game.DrawDelayMin.Milliseconds(),
			DrawDelayMaxMs:          game.DrawDelayMax.Milliseconds(),
			HandsReadyGraceMs:       game.HandsReadyGrace.Milliseconds(),
			SimultaneityThresholdMs: game.SimultaneityThreshold.Milliseconds(),
			RoomMaxAgeMs:            game.RoomMaxAge.Milliseconds(),
			CleanupIntervalMs:       game.CleanupInterval.Milliseconds(),
		},
	}
}

// loadConfig reads the config file if it exists and applies environment
// overrides. A missing file is not an error; defaults apply.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Port = getEnv("PORT", config.Port)
	return config, nil
}

// Orchestrator converts the milliseconds tuning into orchestrator config.
func (g GameConfig) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		CountdownDuration:     time.Duration(g.CountdownMs) * time.Millisecond,
		DrawDelayMin:          time.Duration(g.DrawDelayMinMs) * time.Millisecond,
		DrawDelayMax:          time.Duration(g.DrawDelayMaxMs) * time.Millisecond,
		HandsReadyGrace:       time.Duration(g.HandsReadyGraceMs) * time.Millisecond,
		SimultaneityThreshold: time.Duration(g.SimultaneityThresholdMs) * time.Millisecond,
		RoomMaxAge:            time.Duration(g.RoomMaxAgeMs) * time.Millisecond,
		CleanupInterval:       time.Duration(g.CleanupIntervalMs) * time.Millisecond,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
