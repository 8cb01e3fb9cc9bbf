// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tremokit.sh/buildenv"
	"tremokit.sh/cmdfactory"
	"tremokit.sh/engine"
	"tremokit.sh/exec"
	"tremokit.sh/internal/cli/tremo/utils"
	"tremokit.sh/internal/fancymap"
	"tremokit.sh/log"
	"tremokit.sh/toolchain"
	"tremokit.sh/tui"
)

type BuildOptions struct {
	DryRun         bool     `long:"dry-run" short:"n" usage:"Print the commands without running them"`
	Env            string   `long:"environment" short:"e" usage:"Build the named project environment"`
	Force          bool     `long:"no-cache" short:"F" usage:"Rebuild every file even if it is up to date"`
	ProjectOptions []string `long:"project-option" short:"O" usage:"Override a project option (KEY=VALUE)"`
	Targets        []string `long:"target" short:"t" usage:"Build the named target or file instead of the defaults"`
	UploadPort     string   `long:"upload-port" env:"UPLOAD_PORT" usage:"Serial port used by the upload target"`
	UploadSpeed    string   `long:"upload-speed" env:"UPLOAD_SPEED" usage:"Baud rate used by the upload target"`
	Verbose        bool     `long:"verbose" short:"v" usage:"Print each command line instead of its description"`

	// Set when running programmatically, e.g. from upload or tests.
	Workdir string        `noattribute:"true"`
	Out     io.Writer     `noattribute:"true"`
	Runner  engine.Runner `noattribute:"true"`

	env *buildenv.Environment
}

func NewCmd() *cobra.Command {
	cmd, err := cmdfactory.New(&BuildOptions{}, cobra.Command{
		Short: "Build the firmware of a project",
		Use:   "build [FLAGS] [DIR]",
		Args:  cmdfactory.MaxDirArgs(1),
		Long: heredoc.Docf(`
			Configure and build a Tremo SDK project.

			The project directory holds a %[1]splatformio.ini%[1]s selecting the tremo
			framework.  Without targets the firmware image (ELF) and its raw
			binary are built.
		`, "`"),
		Example: heredoc.Doc(`
			# Build the default environment of the current project
			$ tremo build

			# Build a specific environment of a project
			$ tremo build -e asr6601 path/to/project

			# Show the commands a rebuild would run
			$ tremo build --dry-run -F

			# Build and flash over a serial port
			$ tremo build -t upload --upload-port /dev/ttyUSB0
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

func (opts *BuildOptions) stdout() io.Writer {
	if opts.Out != nil {
		return opts.Out
	}

	return os.Stdout
}

// Build configures the environment and builds the requested targets.
func Build(ctx context.Context, opts *BuildOptions, args ...string) (*engine.Report, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}

	if opts.Workdir == "" {
		workdir, err := utils.Workdir(args)
		if err != nil {
			return nil, err
		}

		opts.Workdir = workdir
	}

	env, err := utils.Setup(ctx, opts.Workdir, utils.SetupOptions{
		Env:            opts.Env,
		UploadPort:     opts.UploadPort,
		UploadSpeed:    opts.UploadSpeed,
		ProjectOptions: opts.ProjectOptions,
	})
	if err != nil {
		return nil, err
	}

	opts.env = env

	if !opts.DryRun && opts.Runner == nil {
		if err := toolchain.Verify(env); err != nil {
			return nil, err
		}
	}

	eopts := append(utils.EngineOptions(ctx),
		engine.WithDryRun(opts.DryRun),
		engine.WithVerbose(opts.Verbose),
		engine.WithForce(opts.Force),
		engine.WithStdout(opts.stdout()),
	)

	if opts.Runner != nil {
		eopts = append(eopts, engine.WithRunner(opts.Runner))
	}

	var bar *tui.ProgressBar
	if !opts.DryRun && !opts.Verbose && tui.IsTerminal(opts.stdout()) {
		bar = tui.NewProgressBar(opts.stdout(), "Building "+env.Get(buildenv.PIOENV))
		eopts = append(eopts,
			engine.WithStdout(io.Discard),
			engine.WithOnProgress(bar.Update),
		)
	}

	eng, err := engine.New(env, eopts...)
	if err != nil {
		return nil, err
	}

	report, err := eng.Build(ctx, opts.Targets...)
	if bar != nil {
		bar.Done()
	}

	return report, err
}

func (opts *BuildOptions) Run(ctx context.Context, args []string) error {
	report, err := Build(ctx, opts, args...)
	if err != nil {
		return err
	}

	if report.DryRun {
		return nil
	}

	entries := []fancymap.FancyMapEntry{
		{Key: "env", Value: opts.env.Get(buildenv.PIOENV)},
	}

	workdir := opts.Workdir + string(filepath.Separator)
	for _, artifact := range report.Artifacts {
		entry := fancymap.FancyMapEntry{
			Key:   strings.TrimPrefix(filepath.Ext(artifact), "."),
			Value: strings.TrimPrefix(artifact, workdir),
		}

		if stat, err := os.Stat(artifact); err == nil {
			entry.Right = fmt.Sprintf("(%s)", humanize.Bytes(uint64(stat.Size())))
		}

		entries = append(entries, entry)
	}

	if size, err := sectionSizes(ctx, opts, report); err != nil {
		log.G(ctx).Debugf("could not determine section sizes: %v", err)
	} else if size != nil {
		entries = append(entries,
			fancymap.FancyMapEntry{Key: "flash", Value: humanize.Bytes(size.Flash())},
			fancymap.FancyMapEntry{Key: "ram", Value: humanize.Bytes(size.RAM())},
		)
	}

	entries = append(entries, fancymap.FancyMapEntry{
		Key:   "time",
		Value: report.Duration.Round(time.Millisecond).String(),
	})

	title := "Build completed successfully!"
	if report.UpToDate() {
		title = "Everything is up to date."
	}

	if !tui.IsTerminal(opts.stdout()) {
		fields := logrus.Fields{}
		for _, entry := range entries {
			fields[entry.Key] = entry.Value
		}
		log.G(ctx).WithFields(fields).Info(strings.ToLower(strings.TrimSuffix(title, "!")))
		return nil
	}

	fancymap.PrintFancyMap(opts.stdout(), title, true, entries...)

	return nil
}

// sectionSizes runs the size tool over the first ELF artifact.  A build
// without an ELF image has no sizes to report.
func sectionSizes(ctx context.Context, opts *BuildOptions, report *engine.Report) (*toolchain.Size, error) {
	var elf string
	for _, artifact := range report.Artifacts {
		if filepath.Ext(artifact) == ".elf" {
			elf = artifact
			break
		}
	}

	if elf == "" {
		return nil, nil
	}

	argv, err := toolchain.SizeCommand(opts.env, elf)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer

	if opts.Runner != nil {
		err = opts.Runner(ctx, opts.Workdir, argv, &out, io.Discard)
	} else {
		err = runTool(ctx, opts.Workdir, argv, &out)
	}
	if err != nil {
		return nil, err
	}

	return toolchain.ParseSize(out.Bytes())
}

func runTool(ctx context.Context, dir string, argv []string, out io.Writer) error {
	executable, err := exec.FromArgv(argv...)
	if err != nil {
		return err
	}

	process, err := exec.NewProcessFromExecutable(executable,
		exec.WithDir(dir),
		exec.WithStdout(out),
		exec.WithStderr(io.Discard),
		exec.WithLogger(log.G(ctx)),
	)
	if err != nil {
		return err
	}

	return process.StartAndWait(ctx)
}
