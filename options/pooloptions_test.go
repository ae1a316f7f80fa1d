// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/ikmak/agingpool/event"
	"github.com/ikmak/agingpool/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePoolOptions(t *testing.T) {
	t.Parallel()

	t.Run("last one wins", func(t *testing.T) {
		t.Parallel()

		monitor := &event.PoolMonitor{}
		merged := MergePoolOptions(
			Pool().SetName("first").SetSize(4).SetMaxIdleTime(time.Second),
			nil,
			Pool().SetName("second").SetMaxConnectionAge(UnlimitedConnectionAge).SetPoolMonitor(monitor),
		)

		require.NotNil(t, merged.Name)
		assert.Equal(t, "second", *merged.Name)
		assert.Equal(t, 4, *merged.Size)
		assert.Equal(t, time.Second, *merged.MaxIdleTime)
		assert.Equal(t, UnlimitedConnectionAge, *merged.MaxConnectionAge)
		assert.Same(t, monitor, merged.PoolMonitor)
		assert.Nil(t, merged.ReapInterval)
	})
	t.Run("logger component levels are merged", func(t *testing.T) {
		t.Parallel()

		merged := MergePoolOptions(
			Pool().SetLoggerOptions(Logger().SetComponentLevel(PoolLogComponent, DebugLogLevel)),
			Pool().SetLoggerOptions(Logger().SetComponentLevel(ReaperLogComponent, OffLogLevel)),
		)

		assert.Equal(t, ComponentLevels{
			PoolLogComponent:   DebugLogLevel,
			ReaperLogComponent: OffLogLevel,
		}, merged.LoggerOptions.ComponentLevels)
	})
}

func TestLoggerOptionsNewLogger(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := Logger().
		SetOutput(buf).
		SetComponentLevel(CheckoutLogComponent, DebugLogLevel).
		NewLogger()

	assert.True(t, log.LevelComponentEnabled(logger.LevelDebug, logger.ComponentCheckout))
	log.Print(logger.LevelWarn, logger.ComponentCheckout, "owner limit", logger.KeyOwnerName, "worker")
	assert.Contains(t, buf.String(), "owner limit")
}

func TestParseConnectionAge(t *testing.T) {
	t.Parallel()

	for _, tcase := range []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"unlimited", UnlimitedConnectionAge, false},
		{"Unlimited", UnlimitedConnectionAge, false},
		{"-1", UnlimitedConnectionAge, false},
		{"30m", 30 * time.Minute, false},
		{"0s", 0, true},
		{"soon", 0, true},
	} {
		tcase := tcase

		t.Run(tcase.input, func(t *testing.T) {
			t.Parallel()

			age, err := ParseConnectionAge(tcase.input)
			if tcase.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tcase.expected, age)
		})
	}

	assert.Equal(t, "Unlimited", FormatConnectionAge(UnlimitedConnectionAge))
	assert.Equal(t, "1m0s", FormatConnectionAge(time.Minute))
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	t.Run("all keys", func(t *testing.T) {
		t.Parallel()

		opts, err := ParseConfig([]byte(`
name = "db"
size = 8
reap_interval = "30s"
max_idle_time = "5m"
max_connection_age = "unlimited"
capture_allocation_traces = true
wait_log_interval = "10s"
log_level = "debug"
`))
		require.NoError(t, err)

		assert.Equal(t, "db", *opts.Name)
		assert.Equal(t, 8, *opts.Size)
		assert.Equal(t, 30*time.Second, *opts.ReapInterval)
		assert.Equal(t, 5*time.Minute, *opts.MaxIdleTime)
		assert.Equal(t, UnlimitedConnectionAge, *opts.MaxConnectionAge)
		assert.True(t, *opts.CaptureAllocationTraces)
		assert.Equal(t, 10*time.Second, *opts.WaitLogInterval)
		assert.Equal(t, DebugLogLevel, opts.LoggerOptions.ComponentLevels[AllLogComponent])
	})
	t.Run("absent keys stay unset", func(t *testing.T) {
		t.Parallel()

		opts, err := ParseConfig([]byte(`size = 2`))
		require.NoError(t, err)

		assert.Equal(t, 2, *opts.Size)
		assert.Nil(t, opts.Name)
		assert.Nil(t, opts.MaxConnectionAge)
		assert.Nil(t, opts.CaptureAllocationTraces)
		assert.Nil(t, opts.LoggerOptions)
	})
	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()

		for _, doc := range []string{
			`reap_interval = "often"`,
			`max_connection_age = "0s"`,
			`log_level = "loud"`,
			`size = `,
		} {
			_, err := ParseConfig([]byte(doc))
			assert.Errorf(t, err, "expected an error for %q", doc)
		}
	})
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "pool.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"cache\"\nmax_idle_time = \"1m\"\n"), 0o600))

	opts, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cache", *opts.Name)
	assert.Equal(t, time.Minute, *opts.MaxIdleTime)

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Run("reads every variable", func(t *testing.T) {
		envy.Temp(func() {
			envy.Set(EnvName, "env-pool")
			envy.Set(EnvSize, "6")
			envy.Set(EnvReapInterval, "2s")
			envy.Set(EnvMaxIdleTime, "3s")
			envy.Set(EnvMaxConnectionAge, "unlimited")
			envy.Set(EnvCaptureAllocationTraces, "true")
			envy.Set(EnvWaitLogInterval, "4s")
			envy.Set(EnvLogLevel, "info")

			opts, err := FromEnv()
			require.NoError(t, err)

			assert.Equal(t, "env-pool", *opts.Name)
			assert.Equal(t, 6, *opts.Size)
			assert.Equal(t, 2*time.Second, *opts.ReapInterval)
			assert.Equal(t, 3*time.Second, *opts.MaxIdleTime)
			assert.Equal(t, UnlimitedConnectionAge, *opts.MaxConnectionAge)
			assert.True(t, *opts.CaptureAllocationTraces)
			assert.Equal(t, 4*time.Second, *opts.WaitLogInterval)
			assert.Equal(t, InfoLogLevel, opts.LoggerOptions.ComponentLevels[AllLogComponent])
		})
	})
	t.Run("invalid size", func(t *testing.T) {
		envy.Temp(func() {
			envy.Set(EnvSize, "many")

			_, err := FromEnv()
			assert.Error(t, err)
		})
	})
	t.Run("env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pool.env")
		require.NoError(t, os.WriteFile(path, []byte("AGINGPOOL_SIZE=3\nAGINGPOOL_NAME=dotenv\n"), 0o600))

		envy.Temp(func() {
			require.NoError(t, LoadEnvFile(path))

			opts, err := FromEnv()
			require.NoError(t, err)
			assert.Equal(t, 3, *opts.Size)
			assert.Equal(t, "dotenv", *opts.Name)
		})
	})
	t.Run("env file sets log levels", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "log.env")
		require.NoError(t, os.WriteFile(path, []byte("AGINGPOOL_LOG_POOL=debug\n"), 0o600))

		envy.Temp(func() {
			envy.Set("AGINGPOOL_LOG_ALL", "")
			envy.Set("AGINGPOOL_LOG_CHECKOUT", "")
			envy.Set("AGINGPOOL_LOG_REAPER", "")
			require.NoError(t, LoadEnvFile(path))

			log := Logger().SetOutput(&bytes.Buffer{}).NewLogger()
			assert.True(t, log.LevelComponentEnabled(logger.LevelDebug, logger.ComponentPool))
			assert.False(t, log.LevelComponentEnabled(logger.LevelDebug, logger.ComponentReaper))
		})
	})
}
