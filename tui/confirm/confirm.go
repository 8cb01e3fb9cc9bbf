// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Acorn Labs, Inc; All rights reserved.
// Copyright 2022 Unikraft GmbH; All rights reserved.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package confirm asks yes/no questions on the terminal.
package confirm

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/erikgeiser/promptkit/confirmation"
)

var queryMark = lipgloss.NewStyle().
	Background(lipgloss.Color("12")).
	Foreground(lipgloss.AdaptiveColor{
		Light: "10",
		Dark:  "0",
	}).
	Render

// NewConfirm prompts the user with question, preselecting def.
func NewConfirm(question string, def bool) (bool, error) {
	input := confirmation.New(
		queryMark("[?] ")+question,
		confirmation.NewValue(def),
	)
	input.Template = confirmation.TemplateYN
	input.ResultTemplate = confirmation.ResultTemplateYN
	input.KeyMap.SelectYes = append(input.KeyMap.SelectYes, "+")
	input.KeyMap.SelectNo = append(input.KeyMap.SelectNo, "-")

	return input.RunPrompt()
}
