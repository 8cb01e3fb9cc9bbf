// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file expect in compliance with the License.

// Package cli holds the pieces shared by every command line entrypoint: the
// configuration manager bound to the global flags and the logger derived from
// it.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tremokit.sh/cmdfactory"
	"tremokit.sh/config"
	"tremokit.sh/log"
)

type CliOptions struct {
	ConfigManager *config.ConfigManager
	Logger        *logrus.Logger
	LogOutput     io.Writer
}

type CliOption func(*CliOptions) error

// WithConfigManager sets a previously instantiated ConfigManager.
func WithConfigManager(cfgm *config.ConfigManager) CliOption {
	return func(copts *CliOptions) error {
		copts.ConfigManager = cfgm
		return nil
	}
}

// WithDefaultConfigManager reads the user's configuration file over the
// defaults and exposes every setting as a global flag of cmd.
func WithDefaultConfigManager(cmd *cobra.Command) CliOption {
	return func(copts *CliOptions) error {
		if copts.ConfigManager == nil {
			cfgm, err := config.NewConfigManager(
				config.WithDefaultConfigFile(),
			)
			if err != nil {
				return err
			}

			copts.ConfigManager = cfgm
		}

		if err := cmdfactory.AttributeFlags(cmd, copts.ConfigManager.Config); err != nil {
			return fmt.Errorf("could not bind configuration flags: %w", err)
		}

		return nil
	}
}

// WithLogOutput sets where log statements are written.
func WithLogOutput(out io.Writer) CliOption {
	return func(copts *CliOptions) error {
		copts.LogOutput = out
		return nil
	}
}

// WithDefaultLogger sets up the logger described by the configuration.
func WithDefaultLogger() CliOption {
	return func(copts *CliOptions) error {
		if copts.Logger != nil {
			return nil
		}

		if copts.LogOutput == nil {
			copts.LogOutput = os.Stderr
		}

		if copts.ConfigManager == nil {
			copts.Logger = log.New(copts.LogOutput, log.FANCY, "info", false)
			return nil
		}

		copts.Logger = logrus.New()
		ConfigureLogger(copts.Logger, copts.LogOutput, copts.ConfigManager.Config)

		return nil
	}
}

// ConfigureLogger applies the log settings of cfg to logger.
func ConfigureLogger(logger *logrus.Logger, out io.Writer, cfg *config.Config) {
	log.Configure(logger,
		out,
		log.LoggerTypeFromString(cfg.Log.Type),
		cfg.Log.Level,
		cfg.Log.Timestamps,
	)
}

// NewContext applies opts and returns ctx carrying the resulting
// configuration manager and logger.
func NewContext(ctx context.Context, opts ...CliOption) (context.Context, *CliOptions, error) {
	copts := &CliOptions{}

	for _, o := range opts {
		if err := o(copts); err != nil {
			return ctx, copts, err
		}
	}

	if copts.ConfigManager != nil {
		ctx = config.WithConfigManager(ctx, copts.ConfigManager)
	}

	if copts.Logger != nil {
		ctx = log.WithLogger(ctx, copts.Logger)
	}

	return ctx, copts, nil
}
