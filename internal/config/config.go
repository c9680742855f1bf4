package config

import "time"

// Config is the root configuration for holdfast.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Scheduler      SchedulerConfig      `yaml:"scheduler"`
	Notifications  NotificationsConfig  `yaml:"notifications"`
	Focus          FocusConfig          `yaml:"focus"`
	Pomodoro       PomodoroConfig       `yaml:"pomodoro"`
	TimeLimits     TimeLimitsConfig     `yaml:"time_limits"`
	Streak         StreakConfig         `yaml:"streak"`
	Bypass         BypassConfig         `yaml:"bypass"`
	Lockdown       LockdownConfig       `yaml:"lockdown"`
	CommitmentLock CommitmentLockConfig `yaml:"commitment_lock"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	TokenDir  string `yaml:"token_dir"`
	Timezone  string `yaml:"timezone"`
	EnableMCP bool   `yaml:"enable_mcp"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SchedulerConfig struct {
	SweepSpec       string `yaml:"sweep"`        // cron spec for the overdue sweep
	RolloverSpec    string `yaml:"rollover"`     // daily usage rollover
	StreakCheckSpec string `yaml:"streak_check"` // end-of-day streak evaluation
}

type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	MCP      bool           `yaml:"mcp"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type FocusConfig struct {
	Enabled        bool `yaml:"enabled"`
	SoftLock       bool `yaml:"soft_lock"` // true allows cancelling a running session
	DefaultMinutes int  `yaml:"default_minutes"`
	MaxMinutes     int  `yaml:"max_minutes"`
	NotifyOnStart  bool `yaml:"notify_on_start"`
}

type PomodoroConfig struct {
	Enabled                 bool `yaml:"enabled"`
	WorkMinutes             int  `yaml:"work_minutes"`
	BreakMinutes            int  `yaml:"break_minutes"`
	LongBreakMinutes        int  `yaml:"long_break_minutes"`
	SessionsBeforeLongBreak int  `yaml:"sessions_before_long_break"`
	AutoStartBreaks         bool `yaml:"auto_start_breaks"`
	AutoStartWork           bool `yaml:"auto_start_work"`
}

type TimeLimitsConfig struct {
	Enabled                 bool           `yaml:"enabled"`
	Limits                  map[string]int `yaml:"limits"` // platform → minutes per day
	WarningThresholdPercent int            `yaml:"warning_threshold_percent"`
	BlockWhenLimitReached   bool           `yaml:"block_when_limit_reached"`
	HistoryRetentionDays    int            `yaml:"history_retention_days"`
}

type StreakConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Goal       string `yaml:"goal"` // focus_minutes | block_count | no_access
	Target     int    `yaml:"target"`
	Milestones []int  `yaml:"milestones"`
}

type BypassConfig struct {
	Enabled       bool          `yaml:"enabled"`
	AllowBypass   bool          `yaml:"allow_bypass"`
	ChallengeType string        `yaml:"challenge_type"`
	Difficulty    string        `yaml:"difficulty"`
	Cooldown      time.Duration `yaml:"cooldown"`
	Duration      time.Duration `yaml:"duration"`
	ChallengeTTL  time.Duration `yaml:"challenge_ttl"`
}

type LockdownConfig struct {
	MinPINLength           int `yaml:"min_pin_length"`
	MaxPINLength           int `yaml:"max_pin_length"`
	EmergencyBypassMinutes int `yaml:"emergency_bypass_minutes"`
}

type CommitmentLockConfig struct {
	Enabled                     bool           `yaml:"enabled"`
	FrictionLevel               string         `yaml:"friction_level"` // low | medium | high | extreme
	NuclearMode                 bool           `yaml:"nuclear_mode"`
	ConfirmationDelay           time.Duration  `yaml:"confirmation_delay"` // 0 uses the tier default
	MinIntentionLength          int            `yaml:"min_intention_length"`
	ChallengesRequired          int            `yaml:"challenges_required"`
	ChallengesMustBeConsecutive bool           `yaml:"challenges_must_be_consecutive"`
	ChallengeType               string         `yaml:"challenge_type"`
	ChallengeDifficulty         string         `yaml:"challenge_difficulty"`
	BaseCooldownMinutes         int            `yaml:"base_cooldown_minutes"`
	EscalationEnabled           bool           `yaml:"escalation_enabled"`
	EscalationMultipliers       []int          `yaml:"escalation_multipliers"`
	TimeLockHours               int            `yaml:"time_lock_hours"`
	WeeklyUnlockLimit           int            `yaml:"weekly_unlock_limit"`
	Schedule                    ScheduleConfig `yaml:"schedule"`
	MaxHistory                  int            `yaml:"max_history"`
}

// ScheduleConfig restricts unlocks to a daily window of local hours.
// StartHour > EndHour wraps around midnight (22 → 6).
type ScheduleConfig struct {
	Enabled   bool `yaml:"enabled"`
	StartHour int  `yaml:"start_hour"`
	EndHour   int  `yaml:"end_hour"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8421,
			LogLevel:  "info",
			TokenDir:  "~/.config/holdfast",
			EnableMCP: true,
		},
		Database: DatabaseConfig{
			Path: "~/.config/holdfast/holdfast.db",
		},
		Scheduler: SchedulerConfig{
			SweepSpec:       "@every 1m",
			RolloverSpec:    "0 0 * * *",
			StreakCheckSpec: "55 23 * * *",
		},
		Focus: FocusConfig{
			Enabled:        true,
			SoftLock:       true,
			DefaultMinutes: 25,
			MaxMinutes:     480,
		},
		Pomodoro: PomodoroConfig{
			Enabled:                 true,
			WorkMinutes:             25,
			BreakMinutes:            5,
			LongBreakMinutes:        15,
			SessionsBeforeLongBreak: 4,
		},
		TimeLimits: TimeLimitsConfig{
			Limits:                  map[string]int{},
			WarningThresholdPercent: 80,
			BlockWhenLimitReached:   true,
			HistoryRetentionDays:    30,
		},
		Streak: StreakConfig{
			Enabled:    true,
			Goal:       "focus_minutes",
			Target:     60,
			Milestones: []int{3, 7, 14, 30, 60, 100, 180, 365},
		},
		Bypass: BypassConfig{
			Enabled:       true,
			AllowBypass:   true,
			ChallengeType: "math",
			Difficulty:    "medium",
			Cooldown:      5 * time.Minute,
			Duration:      5 * time.Minute,
			ChallengeTTL:  2 * time.Minute,
		},
		Lockdown: LockdownConfig{
			MinPINLength:           4,
			MaxPINLength:           8,
			EmergencyBypassMinutes: 60,
		},
		CommitmentLock: CommitmentLockConfig{
			Enabled:                     true,
			FrictionLevel:               "medium",
			MinIntentionLength:          50,
			ChallengesRequired:          3,
			ChallengesMustBeConsecutive: true,
			ChallengeType:               "math",
			ChallengeDifficulty:         "medium",
			BaseCooldownMinutes:         5,
			EscalationEnabled:           true,
			EscalationMultipliers:       []int{1, 2, 4, 8},
			TimeLockHours:               24,
			WeeklyUnlockLimit:           3,
			Schedule: ScheduleConfig{
				StartHour: 18,
				EndHour:   22,
			},
			MaxHistory: 100,
		},
	}
}
