// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package config

// TremoKit holds the tool-wide settings.  Project specific options live in
// the project's platformio.ini and never here.
type TremoKit struct {
	NoParallel bool   `yaml:"no_parallel" env:"TREMOKIT_NO_PARALLEL" long:"no-parallel" usage:"Compile one source file at a time" default:"false"`
	Jobs       int    `yaml:"jobs" env:"TREMOKIT_JOBS" long:"jobs" short:"j" usage:"Number of concurrent compile jobs (0 uses every CPU)" default:"0"`
	Python     string `yaml:"python" env:"TREMOKIT_PYTHON" long:"python" usage:"Python interpreter running the upload loader" default:"python3"`

	Paths struct {
		Platform string `yaml:"platform,omitempty" env:"TREMOKIT_PATHS_PLATFORM" long:"platform-dir" usage:"Path to the ASR platform (boards and loader scripts)"`
		Config   string `yaml:"config,omitempty" env:"TREMOKIT_PATHS_CONFIG" long:"config-dir" usage:"Path to TremoKit config directory" noattribute:"true"`
	} `yaml:"paths,omitempty"`

	Log struct {
		Level      string `yaml:"level" env:"TREMOKIT_LOG_LEVEL" long:"log-level" usage:"Log level verbosity" default:"info"`
		Timestamps bool   `yaml:"timestamps" env:"TREMOKIT_LOG_TIMESTAMPS" long:"log-timestamps" usage:"Enable log timestamps"`
		Type       string `yaml:"type" env:"TREMOKIT_LOG_TYPE" long:"log-type" usage:"Log type" default:"fancy"`
	} `yaml:"log"`
}

// Config is the configuration carried in a context.
type Config = TremoKit

// ConfigDetail documents a configuration key.
type ConfigDetail struct {
	Key           string
	Description   string
	AllowedValues []string
}

var configDetails = []ConfigDetail{
	{
		Key:         "no_parallel",
		Description: "compile sources sequentially",
	},
	{
		Key:         "jobs",
		Description: "the number of sources compiled concurrently",
	},
	{
		Key:         "python",
		Description: "the Python interpreter used to run tremo_loader.py",
	},
	{
		Key:         "paths.platform",
		Description: "the platform directory holding boards/ and builder/scripts/",
	},
	{
		Key:         "log.level",
		Description: "Set the logging verbosity",
		AllowedValues: []string{
			"panic",
			"fatal",
			"error",
			"warn",
			"info",
			"debug",
			"trace",
		},
	},
	{
		Key:         "log.type",
		Description: "Set the logging format",
		AllowedValues: []string{
			"quiet",
			"basic",
			"fancy",
			"json",
		},
	},
	{
		Key:         "log.timestamps",
		Description: "Show timestamps with log output",
	},
}

// ConfigDetails returns the documented configuration keys.
func ConfigDetails() []ConfigDetail {
	return configDetails
}
