package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/btouchard/holdfast/internal/challenge"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/holdfast/holdfast.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "holdfast", "holdfast.yaml"))
	}

	paths = append(paths, "holdfast.yaml")

	if envPath := os.Getenv("HOLDFAST_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/holdfast/holdfast.yaml < ~/.config/holdfast/holdfast.yaml < ./holdfast.yaml < $HOLDFAST_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("HOLDFAST_TELEGRAM_TOKEN"); token != "" {
		cfg.Notifications.Telegram.Token = token
	}
	if tz := os.Getenv("HOLDFAST_TIMEZONE"); tz != "" {
		cfg.Server.Timezone = tz
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host == "0.0.0.0" {
		return fmt.Errorf("server.host must not be 0.0.0.0; holdfast only listens on localhost")
	}

	if _, err := cron.ParseStandard(cfg.Scheduler.RolloverSpec); err != nil {
		return fmt.Errorf("scheduler.rollover: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.Scheduler.StreakCheckSpec); err != nil {
		return fmt.Errorf("scheduler.streak_check: %w", err)
	}
	if cfg.Scheduler.SweepSpec != "" {
		if _, err := cron.ParseStandard(cfg.Scheduler.SweepSpec); err != nil {
			return fmt.Errorf("scheduler.sweep: %w", err)
		}
	}

	if cfg.Focus.MaxMinutes < 1 {
		return fmt.Errorf("focus.max_minutes must be at least 1")
	}

	p := cfg.Pomodoro
	if p.WorkMinutes < 1 || p.BreakMinutes < 1 || p.LongBreakMinutes < 1 {
		return fmt.Errorf("pomodoro durations must be at least 1 minute")
	}
	if p.SessionsBeforeLongBreak < 1 {
		return fmt.Errorf("pomodoro.sessions_before_long_break must be at least 1")
	}

	tl := cfg.TimeLimits
	if tl.WarningThresholdPercent < 1 || tl.WarningThresholdPercent > 100 {
		return fmt.Errorf("time_limits.warning_threshold_percent must be between 1 and 100, got %d", tl.WarningThresholdPercent)
	}
	if tl.HistoryRetentionDays < 1 {
		return fmt.Errorf("time_limits.history_retention_days must be at least 1")
	}
	for platform, minutes := range tl.Limits {
		if minutes < 0 {
			return fmt.Errorf("time_limits.limits.%s must not be negative", platform)
		}
	}

	switch cfg.Streak.Goal {
	case "focus_minutes", "block_count", "no_access":
	default:
		return fmt.Errorf("streak.goal must be focus_minutes, block_count or no_access, got %q", cfg.Streak.Goal)
	}

	if _, err := challenge.ParseType(cfg.Bypass.ChallengeType); err != nil {
		return fmt.Errorf("bypass.challenge_type: %w", err)
	}
	if _, err := challenge.ParseDifficulty(cfg.Bypass.Difficulty); err != nil {
		return fmt.Errorf("bypass.difficulty: %w", err)
	}

	ld := cfg.Lockdown
	if ld.MinPINLength < 1 || ld.MaxPINLength < ld.MinPINLength {
		return fmt.Errorf("lockdown pin length range is invalid (%d-%d)", ld.MinPINLength, ld.MaxPINLength)
	}

	if err := validateCommitmentLock(cfg.CommitmentLock); err != nil {
		return err
	}

	if cfg.Notifications.Telegram.Enabled && cfg.Notifications.Telegram.Token == "" {
		return fmt.Errorf("notifications.telegram.token is required when telegram is enabled")
	}

	cfg.Database.Path = ExpandHome(cfg.Database.Path)
	cfg.Server.TokenDir = ExpandHome(cfg.Server.TokenDir)

	return nil
}

func validateCommitmentLock(cl CommitmentLockConfig) error {
	switch cl.FrictionLevel {
	case "low", "medium", "high", "extreme":
	default:
		return fmt.Errorf("commitment_lock.friction_level must be low, medium, high or extreme, got %q", cl.FrictionLevel)
	}
	if cl.ChallengesRequired < 1 {
		return fmt.Errorf("commitment_lock.challenges_required must be at least 1")
	}
	if len(cl.EscalationMultipliers) == 0 {
		return fmt.Errorf("commitment_lock.escalation_multipliers must not be empty")
	}
	for i := 1; i < len(cl.EscalationMultipliers); i++ {
		if cl.EscalationMultipliers[i] < cl.EscalationMultipliers[i-1] {
			return fmt.Errorf("commitment_lock.escalation_multipliers must be non-decreasing")
		}
	}
	if cl.Schedule.StartHour < 0 || cl.Schedule.StartHour > 23 || cl.Schedule.EndHour < 0 || cl.Schedule.EndHour > 23 {
		return fmt.Errorf("commitment_lock.schedule hours must be between 0 and 23")
	}
	if cl.MaxHistory < 1 {
		return fmt.Errorf("commitment_lock.max_history must be at least 1")
	}
	if _, err := challenge.ParseType(cl.ChallengeType); err != nil {
		return fmt.Errorf("commitment_lock.challenge_type: %w", err)
	}
	if _, err := challenge.ParseDifficulty(cl.ChallengeDifficulty); err != nil {
		return fmt.Errorf("commitment_lock.challenge_difficulty: %w", err)
	}
	return nil
}
