// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package clean

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"tremokit.sh/cmdfactory"
	"tremokit.sh/internal/cli/tremo/utils"
	"tremokit.sh/log"
	"tremokit.sh/project"
	"tremokit.sh/tui"
	"tremokit.sh/tui/confirm"
)

type CleanOptions struct {
	All bool   `long:"all" short:"a" usage:"Remove the build directories of every environment"`
	Env string `long:"environment" short:"e" usage:"Clean the named project environment"`
	Yes bool   `long:"yes" short:"y" usage:"Do not ask for confirmation"`
}

func NewCmd() *cobra.Command {
	cmd, err := cmdfactory.New(&CleanOptions{}, cobra.Command{
		Short: "Remove build artifacts",
		Use:   "clean [FLAGS] [DIR]",
		Args:  cmdfactory.MaxDirArgs(1),
		Long: heredoc.Doc(`
			Remove the build directory of a project environment.
		`),
		Example: heredoc.Doc(`
			# Remove the build directory of the default environment
			$ tremo clean

			# Remove every build directory without asking
			$ tremo clean --all -y
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

// Dirs returns the build directories clean removes.
func Dirs(proj *project.Project, envName string, all bool) ([]string, error) {
	if all {
		return []string{proj.BuildDir()}, nil
	}

	penv, err := proj.Environment(envName)
	if err != nil {
		return nil, err
	}

	return []string{filepath.Join(proj.BuildDir(), penv.Name)}, nil
}

func (opts *CleanOptions) Run(ctx context.Context, args []string) error {
	workdir, err := utils.Workdir(args)
	if err != nil {
		return err
	}

	proj, err := project.Load(workdir)
	if err != nil {
		return err
	}

	dirs, err := Dirs(proj, opts.Env, opts.All)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.G(ctx).WithField("dir", dir).Info("nothing to clean")
			continue
		}

		if !opts.Yes && tui.IsTerminal(os.Stdin) {
			ok, err := confirm.NewConfirm(fmt.Sprintf("remove %s?", dir), true)
			if err != nil {
				return err
			}

			if !ok {
				continue
			}
		}

		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("could not remove %s: %w", dir, err)
		}

		log.G(ctx).WithField("dir", dir).Info("removed")
	}

	return nil
}
