// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"tremokit.sh/cmdfactory"
	"tremokit.sh/internal/version"
)

type VersionOptions struct {
	Out io.Writer `noattribute:"true"`
}

func NewCmd() *cobra.Command {
	cmd, err := cmdfactory.New(&VersionOptions{}, cobra.Command{
		Short:   "Show tremo version information",
		Use:     "version",
		Aliases: []string{"v"},
		Args:    cmdfactory.NoArgsQuoteReminder,
		Long:    "Show tremo version information.",
		Example: heredoc.Doc(`
			# Show tremo version information
			$ tremo version
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

func (opts *VersionOptions) Run(_ context.Context, _ []string) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	_, err := fmt.Fprintf(out, "tremo %s", version.String())
	return err
}
