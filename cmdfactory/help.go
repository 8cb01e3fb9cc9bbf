// SPDX-License-Identifier: MIT
// Copyright (c) 2019 GitHub Inc.
// Copyright (c) 2022 Unikraft GmbH.
// Copyright (c) 2024, The TremoKit Authors.
package cmdfactory

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tremokit.sh/tui"
)

// AnnotationHelpGroup is used to indicate in which help group a command belongs.
const (
	AnnotationHelpGroup  = "help:group"
	AnnotationHelpHidden = "help:hidden"
)

func rootUsageFunc(command *cobra.Command) error {
	command.Printf("Usage:  %s", command.UseLine())

	subcommands := command.Commands()
	if len(subcommands) > 0 {
		command.Print("\n\nAvailable commands:\n")
		for _, c := range subcommands {
			if _, ok := c.Annotations[AnnotationHelpHidden]; ok {
				continue
			}
			command.Printf("  %s\n", c.Name())
		}
		return nil
	}

	flagUsages := command.LocalFlags().FlagUsagesWrapped(80)
	if flagUsages != "" {
		command.Println("\n\nFlags:")
		command.Print(indent(dedent(flagUsages), "  "))
	}

	return nil
}

func rootFlagErrorFunc(_ *cobra.Command, err error) error {
	if err == pflag.ErrHelp {
		return err
	}
	return FlagErrorWrap(err)
}

// Display helpful error message in case subcommand name was mistyped.
// This matches Cobra's behavior for root command, which Cobra
// confusingly doesn't apply to nested commands.
func nestedSuggestFunc(command *cobra.Command, arg string) {
	command.Printf("unknown command %q for %q\n", arg, command.CommandPath())

	var candidates []string
	if arg == "help" {
		candidates = []string{"--help"}
	} else {
		if command.SuggestionsMinimumDistance <= 0 {
			command.SuggestionsMinimumDistance = 2
		}
		candidates = command.SuggestionsFor(arg)
	}

	if len(candidates) > 0 {
		command.Print("\nDid you mean this?\n")
		for _, c := range candidates {
			command.Printf("\t%s\n", c)
		}
	}

	command.Print("\n")
	_ = rootUsageFunc(command)
}

func isRootCmd(command *cobra.Command) bool {
	return command != nil && !command.HasParent()
}

func fullname(parent, cmd *cobra.Command) string {
	name := ""

	for {
		name = cmd.Name() + " " + name
		if !cmd.HasParent() || cmd.Parent() == parent {
			break
		}
		cmd = cmd.Parent()
	}

	return strings.TrimSpace(name)
}

func isHelpFlag(arg string) bool {
	return arg == "--help" || arg == "-h"
}

func rootHelpFunc(cmd *cobra.Command, args []string) {
	if isRootCmd(cmd.Parent()) && len(args) >= 2 && !slices.ContainsFunc(args, isHelpFlag) {
		nestedSuggestFunc(cmd, args[1])
		return
	}

	type helpEntry struct {
		title string
		body  string
	}

	longText := cmd.Long
	if longText == "" {
		longText = cmd.Short
	}

	helpEntries := []helpEntry{}
	if longText != "" {
		helpEntries = append(helpEntries, helpEntry{"", longText})
	}
	helpEntries = append(helpEntries, helpEntry{"USAGE", cmd.UseLine()})

	if len(cmd.Aliases) > 0 {
		helpEntries = append(helpEntries, helpEntry{
			title: "ALIASES",
			body:  strings.Join(cmd.Aliases, " "),
		})
	}

	maxPad := 0
	var visible []*cobra.Command
	for _, c := range cmd.Commands() {
		if c.Short == "" {
			continue
		}
		if _, ok := c.Annotations[AnnotationHelpHidden]; ok {
			continue
		}

		if pad := len(fullname(cmd, c)); pad > maxPad {
			maxPad = pad
		}

		visible = append(visible, c)
	}

	grouped := map[string][]string{}
	var ungrouped []string

	for _, c := range visible {
		usage := rpad(fullname(cmd, c), maxPad+2) + c.Short

		group, ok := c.Annotations[AnnotationHelpGroup]
		if ok && cmd.ContainsGroup(group) {
			grouped[group] = append(grouped[group], usage)
		} else {
			ungrouped = append(ungrouped, usage)
		}
	}

	if len(ungrouped) > 0 {
		helpEntries = append(helpEntries, helpEntry{
			title: "SUBCOMMANDS",
			body:  strings.Join(ungrouped, "\n"),
		})
	}

	for _, group := range cmd.Groups() {
		if usages := grouped[group.ID]; len(usages) > 0 {
			helpEntries = append(helpEntries, helpEntry{
				title: group.Title,
				body:  strings.Join(usages, "\n"),
			})
		}
	}

	flagUsages := cmd.LocalFlags().FlagUsages()
	if flagUsages != "" {
		helpEntries = append(helpEntries, helpEntry{"FLAGS", dedent(flagUsages)})
	}

	inheritedFlagUsages := cmd.InheritedFlags().FlagUsages()
	if inheritedFlagUsages != "" {
		helpEntries = append(helpEntries, helpEntry{"INHERITED FLAGS", dedent(inheritedFlagUsages)})
	}

	if cmd.Example != "" {
		helpEntries = append(helpEntries, helpEntry{"EXAMPLES", cmd.Example})
	}

	out := cmd.OutOrStdout()

	for _, e := range helpEntries {
		if e.title != "" && e.body != "" {
			fmt.Fprintln(out, tui.TextTitle(e.title))
			fmt.Fprintln(out, indent(strings.Trim(e.body, "\r\n"), "  "))
		} else if e.body != "" {
			fmt.Fprintln(out, e.body)
		}

		fmt.Fprintln(out)
	}
}

// rpad adds padding to the right of a string.
func rpad(s string, padding int) string {
	template := fmt.Sprintf("%%-%ds ", padding)
	return fmt.Sprintf(template, s)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}

	return strings.Join(lines, "\n")
}

func dedent(s string) string {
	lines := strings.Split(s, "\n")
	minIndent := -1

	for _, l := range lines {
		if len(l) == 0 {
			continue
		}

		indent := len(l) - len(strings.TrimLeft(l, " "))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}

	if minIndent <= 0 {
		return s
	}

	var buf bytes.Buffer
	for _, l := range lines {
		fmt.Fprintln(&buf, strings.TrimPrefix(l, strings.Repeat(" ", minIndent)))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
