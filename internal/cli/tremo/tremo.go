// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package tremo is the root of the tremo command line.
package tremo

import (
	"context"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tremokit.sh/cmdfactory"
	"tremokit.sh/config"
	"tremokit.sh/internal/cli"
	"tremokit.sh/internal/cli/tremo/build"
	"tremokit.sh/internal/cli/tremo/clean"
	"tremokit.sh/internal/cli/tremo/envdump"
	"tremokit.sh/internal/cli/tremo/upload"
	"tremokit.sh/internal/cli/tremo/version"
	kitversion "tremokit.sh/internal/version"
	"tremokit.sh/log"

	// Frameworks
	_ "tremokit.sh/framework/tremo"
)

type TremoOptions struct{}

func NewCmd() *cobra.Command {
	cmd, err := cmdfactory.New(&TremoOptions{}, cobra.Command{
		Short: "Build and flash ASR Tremo firmware",
		Use:   "tremo [FLAGS] SUBCOMMAND",
		Long: heredoc.Docf(`
			Build and flash Cortex-M4 firmware written against the ASR Tremo SDK.

			Version:  %s
		`, kitversion.Version()),
	})
	if err != nil {
		panic(err)
	}

	cmd.AddGroup(&cobra.Group{ID: "build", Title: "BUILD COMMANDS"})
	cmd.AddCommand(build.NewCmd())
	cmd.AddCommand(upload.NewCmd())
	cmd.AddCommand(clean.NewCmd())

	cmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISCELLANEOUS COMMANDS"})
	cmd.AddCommand(envdump.NewCmd())
	cmd.AddCommand(version.NewCmd())

	return cmd
}

// PersistentPre applies the log flags, parsed only now, to the logger set up
// from the configuration file.
func (opts *TremoOptions) PersistentPre(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cli.ConfigureLogger(log.G(ctx), os.Stderr, config.G(ctx))

	log.G(ctx).Debugf("tremo %s", kitversion.Version())

	return nil
}

func (opts *TremoOptions) Run(_ context.Context, _ []string) error {
	return pflag.ErrHelp
}

// Main runs the command line with args and returns the exit status.
func Main(args []string) int {
	cmd := NewCmd()
	cmd.SetArgs(args)

	ctx, _, err := cli.NewContext(signals.SetupSignalContext(),
		cli.WithDefaultConfigManager(cmd),
		cli.WithDefaultLogger(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return cmdfactory.Main(ctx, cmd)
}
