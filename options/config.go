// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/ikmak/agingpool/internal/logger"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Environment variables read by FromEnv.
const (
	EnvName                    = "AGINGPOOL_NAME"
	EnvSize                    = "AGINGPOOL_SIZE"
	EnvReapInterval            = "AGINGPOOL_REAP_INTERVAL"
	EnvMaxIdleTime             = "AGINGPOOL_MAX_IDLE_TIME"
	EnvMaxConnectionAge        = "AGINGPOOL_MAX_CONNECTION_AGE"
	EnvCaptureAllocationTraces = "AGINGPOOL_CAPTURE_TRACES"
	EnvWaitLogInterval         = "AGINGPOOL_WAIT_LOG_INTERVAL"
	EnvLogLevel                = "AGINGPOOL_LOG_LEVEL"
)

// unlimitedLiteral spells UnlimitedConnectionAge in configuration files and the environment.
const unlimitedLiteral = "unlimited"

// fileConfig is the layout of a TOML pool configuration file. Durations use time.ParseDuration syntax.
type fileConfig struct {
	Name                    string `toml:"name"`
	Size                    int    `toml:"size"`
	ReapInterval            string `toml:"reap_interval"`
	MaxIdleTime             string `toml:"max_idle_time"`
	MaxConnectionAge        string `toml:"max_connection_age"`
	CaptureAllocationTraces bool   `toml:"capture_allocation_traces"`
	WaitLogInterval         string `toml:"wait_log_interval"`
	LogLevel                string `toml:"log_level"`
}

// ParseConnectionAge parses a maximum connection age. "unlimited" and "-1" yield UnlimitedConnectionAge.
func ParseConnectionAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, unlimitedLiteral) || s == "-1" {
		return UnlimitedConnectionAge, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.Errorf("connection age must be positive or %q, got %s", unlimitedLiteral, s)
	}
	return d, nil
}

// FormatConnectionAge is the inverse of ParseConnectionAge.
func FormatConnectionAge(d time.Duration) string {
	if d == UnlimitedConnectionAge {
		return "Unlimited"
	}
	return d.String()
}

// LoadFile reads a TOML pool configuration file.
func LoadFile(path string) (*PoolOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading pool configuration %s", path)
	}
	opts, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing pool configuration %s", path)
	}
	return opts, nil
}

// ParseConfig parses a TOML pool configuration. Keys that are absent leave the corresponding option unset so the
// result can be merged over other options with MergePoolOptions.
func ParseConfig(data []byte) (*PoolOptions, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := tree.Unmarshal(&fc); err != nil {
		return nil, err
	}

	opts := Pool()
	if tree.Has("name") {
		opts.SetName(fc.Name)
	}
	if tree.Has("size") {
		opts.SetSize(fc.Size)
	}
	if tree.Has("capture_allocation_traces") {
		opts.SetCaptureAllocationTraces(fc.CaptureAllocationTraces)
	}

	durations := []struct {
		key   string
		value string
		set   func(time.Duration) *PoolOptions
	}{
		{"reap_interval", fc.ReapInterval, opts.SetReapInterval},
		{"max_idle_time", fc.MaxIdleTime, opts.SetMaxIdleTime},
		{"wait_log_interval", fc.WaitLogInterval, opts.SetWaitLogInterval},
	}
	for _, d := range durations {
		if !tree.Has(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", d.key)
		}
		d.set(parsed)
	}

	if tree.Has("max_connection_age") {
		age, err := ParseConnectionAge(fc.MaxConnectionAge)
		if err != nil {
			return nil, errors.Wrap(err, "invalid max_connection_age")
		}
		opts.SetMaxConnectionAge(age)
	}

	if tree.Has("log_level") {
		level, ok := logger.ParseLevel(fc.LogLevel)
		if !ok {
			return nil, errors.Errorf("invalid log_level %q", fc.LogLevel)
		}
		opts.SetLoggerOptions(Logger().SetComponentLevel(AllLogComponent, LogLevel(level)))
	}

	return opts, nil
}

// LoadEnvFile reads dotenv files (".env" when no path is given) and makes their variables visible through envy, where
// FromEnv and the logger's AGINGPOOL_LOG_* levels read them. File values take precedence over the process environment,
// which itself is left unchanged.
func LoadEnvFile(paths ...string) error {
	vars, err := godotenv.Read(paths...)
	if err != nil {
		return errors.Wrap(err, "reading env file")
	}
	for k, v := range vars {
		envy.Set(k, v)
	}
	return nil
}

// FromEnv builds pool options from the AGINGPOOL_* environment variables. Unset variables leave the corresponding
// option unset.
func FromEnv() (*PoolOptions, error) {
	opts := Pool()

	if v := envy.Get(EnvName, ""); v != "" {
		opts.SetName(v)
	}
	if v := envy.Get(EnvSize, ""); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", EnvSize)
		}
		opts.SetSize(size)
	}

	durations := []struct {
		env string
		set func(time.Duration) *PoolOptions
	}{
		{EnvReapInterval, opts.SetReapInterval},
		{EnvMaxIdleTime, opts.SetMaxIdleTime},
		{EnvWaitLogInterval, opts.SetWaitLogInterval},
	}
	for _, d := range durations {
		v := envy.Get(d.env, "")
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", d.env)
		}
		d.set(parsed)
	}

	if v := envy.Get(EnvMaxConnectionAge, ""); v != "" {
		age, err := ParseConnectionAge(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", EnvMaxConnectionAge)
		}
		opts.SetMaxConnectionAge(age)
	}
	if v := envy.Get(EnvCaptureAllocationTraces, ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", EnvCaptureAllocationTraces)
		}
		opts.SetCaptureAllocationTraces(b)
	}
	if v := envy.Get(EnvLogLevel, ""); v != "" {
		level, ok := logger.ParseLevel(v)
		if !ok {
			return nil, errors.Errorf("invalid %s %q", EnvLogLevel, v)
		}
		opts.SetLoggerOptions(Logger().SetComponentLevel(AllLogComponent, LogLevel(level)))
	}

	return opts, nil
}
