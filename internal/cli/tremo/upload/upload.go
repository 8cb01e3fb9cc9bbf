// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package upload

import (
	"context"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"tremokit.sh/cmdfactory"
	"tremokit.sh/framework/tremo"
	"tremokit.sh/internal/cli/tremo/build"
	"tremokit.sh/log"
)

type UploadOptions struct {
	DryRun         bool     `long:"dry-run" short:"n" usage:"Print the commands without running them"`
	Env            string   `long:"environment" short:"e" usage:"Upload the named project environment"`
	ProjectOptions []string `long:"project-option" short:"O" usage:"Override a project option (KEY=VALUE)"`
	UploadPort     string   `long:"upload-port" short:"p" env:"UPLOAD_PORT" usage:"Serial port the board is attached to"`
	UploadSpeed    string   `long:"upload-speed" short:"b" env:"UPLOAD_SPEED" usage:"Baud rate of the loader"`
	Verbose        bool     `long:"verbose" short:"v" usage:"Print each command line instead of its description"`

	build build.BuildOptions
}

func NewCmd() *cobra.Command {
	cmd, err := cmdfactory.New(&UploadOptions{}, cobra.Command{
		Short: "Build and flash the firmware over UART",
		Use:   "upload [FLAGS] [DIR]",
		Args:  cmdfactory.MaxDirArgs(1),
		Long: heredoc.Doc(`
			Build the firmware when needed and flash the raw binary with the
			vendor's tremo_loader.

			The serial port is read from the project's upload_port option and
			falls back to --upload-port.  The baud rate defaults to 921600 and
			the flash address to the board's upload.offset_address.
		`),
		Example: heredoc.Doc(`
			# Flash the default environment of the current project
			$ tremo upload --upload-port /dev/ttyUSB0

			# Flash at a lower baud rate
			$ tremo upload -p /dev/ttyUSB0 -b 115200
		`),
		Annotations: map[string]string{
			cmdfactory.AnnotationHelpGroup: "build",
		},
	})
	if err != nil {
		panic(err)
	}

	return cmd
}

func (opts *UploadOptions) Run(ctx context.Context, args []string) error {
	bopts := &opts.build
	bopts.DryRun = opts.DryRun
	bopts.Env = opts.Env
	bopts.ProjectOptions = opts.ProjectOptions
	bopts.UploadPort = opts.UploadPort
	bopts.UploadSpeed = opts.UploadSpeed
	bopts.Verbose = opts.Verbose
	bopts.Targets = []string{tremo.UploadTarget}

	report, err := build.Build(ctx, bopts, args...)
	if err != nil {
		return err
	}

	if !report.DryRun {
		log.G(ctx).Info("firmware uploaded")
	}

	return nil
}
