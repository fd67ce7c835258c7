package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/kbagent/internal/config"
)

var flagParseErrorTests = []struct {
	in     string
	flag   string
	reason string
}{
	{
		"unknown flag: --nope",
		"--nope",
		"Flag %s is missing.",
	},
	{
		"flag needs an argument: --agent-id",
		"--agent-id",
		"Flag %s needs an argument.",
	},
	{
		"flag needs an argument: 's' in -s",
		"-s",
		"Flag %s needs an argument.",
	},
	{
		"unknown shorthand flag: 'z' in -z",
		"-z",
		"Short flag %s is missing.",
	},
	{
		`invalid argument "20dd" for "--poll-interval" flag: time: unknown unit "dd" in duration "20dd"`,
		"--poll-interval",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "lots" for "--max-results" flag: strconv.ParseInt: parsing "lots": invalid syntax`,
		"--max-results",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "nope" for "-n, --new-session" flag: strconv.ParseBool: parsing "nope": invalid syntax`,
		"-n, --new-session",
		"Flag %s have an invalid argument.",
	},
}

func TestFlagParseError(t *testing.T) {
	for _, tf := range flagParseErrorTests {
		t.Run(tf.in, func(t *testing.T) {
			err := newFlagParseError(errors.New(tf.in))
			require.Equal(t, tf.flag, err.Flag())
			require.Equal(t, tf.reason, err.ReasonFormat())
			require.Equal(t, tf.in, err.Error())
		})
	}
}

func TestDurationFlag(t *testing.T) {
	var d time.Duration
	f := newDurationFlag(10*time.Second, &d)
	require.Equal(t, 10*time.Second, d)
	require.Equal(t, "duration", f.Type())

	require.NoError(t, f.Set("2d"))
	require.Equal(t, 48*time.Hour, d)
	require.NoError(t, f.Set("90s"))
	require.Equal(t, "1m30s", f.String())
	require.Error(t, f.Set("soon"))
}

func TestRootFlags(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		cfg := config.Default()
		cmd := NewRootCmd(BuildInfo{}, cfg, nil)

		err := cmd.ParseFlags([]string{
			"--agent-id", "A1",
			"--alias-id", "L1",
			"--profile", "work",
			"--region", "eu-west-1",
			"-s", "s1",
			"--no-stream",
		})
		require.NoError(t, err)
		for name, want := range map[string]string{
			"agent-id":   "A1",
			"alias-id":   "L1",
			"profile":    "work",
			"region":     "eu-west-1",
			"session-id": "s1",
			"no-stream":  "true",
		} {
			f := cmd.Flag(name)
			require.NotNil(t, f, name)
			require.Equal(t, want, f.Value.String(), name)
		}
	})

	t.Run("defaults from settings", func(t *testing.T) {
		cfg := config.Default()
		cfg.WordWrap = 120
		cmd := NewRootCmd(BuildInfo{}, cfg, nil)

		require.NoError(t, cmd.ParseFlags(nil))
		require.Equal(t, "120", cmd.Flag("word-wrap").Value.String())
		require.Equal(t, "warn", cmd.Flag("log-level").Value.String())
	})

	t.Run("subcommand flags", func(t *testing.T) {
		cmd := NewRootCmd(BuildInfo{}, config.Default(), nil)

		retrieve, _, err := cmd.Find([]string{"retrieve"})
		require.NoError(t, err)
		require.Equal(t, "5", retrieve.Flag("max-results").Value.String())

		wait, _, err := cmd.Find([]string{"ingest", "wait"})
		require.NoError(t, err)
		require.Equal(t, "10s", wait.Flag("poll-interval").Value.String())
	})
}
