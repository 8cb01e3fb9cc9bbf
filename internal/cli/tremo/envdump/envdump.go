// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package envdump

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"tremokit.sh/cmdfactory"
	"tremokit.sh/internal/cli/tremo/utils"
)

type EnvdumpOptions struct {
	Env            string   `long:"environment" short:"e" usage:"Configure the named project environment"`
	Graph          bool     `long:"graph" usage:"Print the target graph instead of the construction variables"`
	ProjectOptions []string `long:"project-option" short:"O" usage:"Override a project option (KEY=VALUE)"`
	UploadPort     string   `long:"upload-port" env:"UPLOAD_PORT" usage:"Serial port used by the upload target"`
	UploadSpeed    string   `long:"upload-speed" env:"UPLOAD_SPEED" usage:"Baud rate used by the upload target"`

	Out io.Writer `noattribute:"true"`
}

func NewCmd() *cobra.Command {
	cmd, err := cmdfactory.New(&EnvdumpOptions{}, cobra.Command{
		Short:   "Show the configured build environment",
		Use:     "env [FLAGS] [DIR]",
		Aliases: []string{"envdump"},
		Args:    cmdfactory.MaxDirArgs(1),
		Long: heredoc.Doc(`
			Configure a project environment without building it and print
			every construction variable, or the graph of targets.
		`),
		Example: heredoc.Doc(`
			# Print the variables of the default environment
			$ tremo env --upload-port /dev/ttyUSB0

			# Print what the firmware is built from
			$ tremo env --graph --upload-port /dev/ttyUSB0
		`),
		Annotations: map[string]string{
			cmdfactory.AnnotationHelpGroup: "misc",
		},
	})
	if err != nil {
		panic(err)
	}

	return cmd
}

func (opts *EnvdumpOptions) Run(ctx context.Context, args []string) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	workdir, err := utils.Workdir(args)
	if err != nil {
		return err
	}

	env, err := utils.Setup(ctx, workdir, utils.SetupOptions{
		Env:            opts.Env,
		UploadPort:     opts.UploadPort,
		UploadSpeed:    opts.UploadSpeed,
		ProjectOptions: opts.ProjectOptions,
	})
	if err != nil {
		return err
	}

	if opts.Graph {
		_, err = fmt.Fprint(out, env.Graph(workdir))
		return err
	}

	return env.Dump(out)
}
