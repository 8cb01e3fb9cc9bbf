// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package platform is the entry point of a build: it selects the framework
// requested by the project and hands the build environment to that
// framework's configurator.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tremokit.sh/buildenv"
	"tremokit.sh/internal/errs"
	"tremokit.sh/log"
)

// SupportedFramework is the only framework this platform builds.
const SupportedFramework = "tremo"

// Configurator populates a build environment for one framework.
type Configurator func(ctx context.Context, env *buildenv.Environment) error

var (
	mu            sync.RWMutex
	configurators = map[string]Configurator{}
)

// Register makes a framework configurator available by name.  Registering a
// name twice is an error.
func Register(name string, configurator Configurator) error {
	if name == "" || configurator == nil {
		return fmt.Errorf("%w: framework name and configurator are required", errs.ErrInvalid)
	}

	mu.Lock()
	defer mu.Unlock()

	if _, ok := configurators[name]; ok {
		return fmt.Errorf("%w: framework %q already registered", errs.ErrInvalid, name)
	}

	configurators[name] = configurator

	return nil
}

// Registered returns the names of all registered frameworks.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(configurators))
	for name := range configurators {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func lookup(name string) (Configurator, bool) {
	mu.RLock()
	defer mu.RUnlock()

	c, ok := configurators[name]
	return c, ok
}

// Dispatch runs the configurator of the supported framework when the project
// requests it.  Any other framework set is rejected before a single
// construction variable is touched.
func Dispatch(ctx context.Context, env *buildenv.Environment) error {
	frameworks := env.List(buildenv.PIOFRAMEWORK)

	requested := false
	for _, fw := range frameworks {
		if fw == SupportedFramework {
			requested = true
			break
		}
	}

	if !requested {
		return errs.Unsupported("Unsupported framework: %v", frameworks)
	}

	configure, ok := lookup(SupportedFramework)
	if !ok {
		return errs.Unsupported("framework %q is not available in this build", SupportedFramework)
	}

	log.G(ctx).
		WithField("framework", SupportedFramework).
		WithField("env", env.Get(buildenv.PIOENV)).
		Debug("configuring")

	return configure(ctx, env)
}
