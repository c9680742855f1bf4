package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "holdfast.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))
	return tmpFile
}

func TestDefaults_SetsExpectedValues(t *testing.T) {
	t.Parallel()

	cfg := Defaults()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8421, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.True(t, cfg.Focus.SoftLock)
	assert.Equal(t, 25, cfg.Pomodoro.WorkMinutes)
	assert.Equal(t, 4, cfg.Pomodoro.SessionsBeforeLongBreak)
	assert.Equal(t, 80, cfg.TimeLimits.WarningThresholdPercent)
	assert.Equal(t, 30, cfg.TimeLimits.HistoryRetentionDays)
	assert.Equal(t, "focus_minutes", cfg.Streak.Goal)
	assert.Equal(t, 5*time.Minute, cfg.Bypass.Cooldown)
	assert.Equal(t, 60, cfg.Lockdown.EmergencyBypassMinutes)
	assert.Equal(t, []int{1, 2, 4, 8}, cfg.CommitmentLock.EscalationMultipliers)
	assert.Equal(t, 3, cfg.CommitmentLock.WeeklyUnlockLimit)
	assert.Equal(t, "0 0 * * *", cfg.Scheduler.RolloverSpec)
}

func TestLoadFromFile_ParsesYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9000
  log_level: "debug"
  timezone: "Europe/Paris"

time_limits:
  enabled: true
  limits:
    youtube: 30
    reddit: 15
  warning_threshold_percent: 75

bypass:
  challenge_type: typing
  difficulty: hard
  cooldown: 10m

commitment_lock:
  friction_level: extreme
  base_cooldown_minutes: 10
  escalation_multipliers: [1, 3, 9]
  schedule:
    enabled: true
    start_hour: 22
    end_hour: 6
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "Europe/Paris", cfg.Server.Timezone)
	assert.True(t, cfg.TimeLimits.Enabled)
	assert.Equal(t, map[string]int{"youtube": 30, "reddit": 15}, cfg.TimeLimits.Limits)
	assert.Equal(t, 75, cfg.TimeLimits.WarningThresholdPercent)
	assert.Equal(t, "typing", cfg.Bypass.ChallengeType)
	assert.Equal(t, 10*time.Minute, cfg.Bypass.Cooldown)
	assert.Equal(t, "extreme", cfg.CommitmentLock.FrictionLevel)
	assert.Equal(t, []int{1, 3, 9}, cfg.CommitmentLock.EscalationMultipliers)
	assert.True(t, cfg.CommitmentLock.Schedule.Enabled)
	assert.Equal(t, 22, cfg.CommitmentLock.Schedule.StartHour)
	assert.Equal(t, 6, cfg.CommitmentLock.Schedule.EndHour)
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("HOLDFAST_TEST_CHAT", "123456")

	path := writeConfig(t, `
notifications:
  telegram:
    enabled: true
    token: "abc:def"
    chat_id: ${HOLDFAST_TEST_CHAT}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(123456), cfg.Notifications.Telegram.ChatID)
}

func TestLoadFromFile_EnvOverridesTelegramToken(t *testing.T) {
	t.Setenv("HOLDFAST_TELEGRAM_TOKEN", "from-env")

	path := writeConfig(t, `
notifications:
  telegram:
    enabled: true
    token: "from-file"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Notifications.Telegram.Token)
}

func TestLoadFromFile_RejectsBindAllInterfaces(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
server:
  host: "0.0.0.0"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0.0.0.0")
}

func TestLoadFromFile_RejectsInvalidPort(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
server:
  port: 99999
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadFromFile_RejectsUnknownStreakGoal(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
streak:
  goal: "vibes"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "streak.goal")
}

func TestLoadFromFile_RejectsDecreasingMultipliers(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
commitment_lock:
  escalation_multipliers: [4, 2, 1]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-decreasing")
}

func TestLoadFromFile_RejectsUnknownFrictionLevel(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
commitment_lock:
  friction_level: "brutal"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "friction_level")
}

func TestLoadFromFile_RejectsBadChallengeType(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
bypass:
  challenge_type: "riddle"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bypass.challenge_type")
}

func TestLoadFromFile_RejectsTelegramWithoutToken(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
notifications:
  telegram:
    enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token")
}

func TestLoadFromFile_NonexistentFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile("/tmp/holdfast-nonexistent-config-file.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8421, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadFromFile_InvalidYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "{{invalid yaml:::"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing YAML")
}

func TestLoadFromFile_PartialOverride_KeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(writeConfig(t, `
pomodoro:
  work_minutes: 50
`))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Pomodoro.WorkMinutes)
	assert.Equal(t, 5, cfg.Pomodoro.BreakMinutes, "default break should be preserved")
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "default host should be preserved")
}

func TestExpandHome_ReplacesLeadingTilde(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "some/path"), ExpandHome("~/some/path"))
	assert.Equal(t, "/absolute/path", ExpandHome("/absolute/path"))
}

func TestLoadFromFile_RejectsInvalidCronSpec(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, `
scheduler:
  rollover: "every midnight"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.rollover")
}
