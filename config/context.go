// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file expect in compliance with the License.
package config

import (
	"context"
)

var (
	// G is an alias for FromContext.
	G = FromContext

	// C is the default configuration manager, holding defaults only.
	C, _ = NewConfigManager()
)

type contextKey struct{}

// WithConfigManager returns a context carrying cfgm.
func WithConfigManager(ctx context.Context, cfgm *ConfigManager) context.Context {
	return context.WithValue(ctx, contextKey{}, cfgm)
}

// FromContext returns the configuration carried by ctx, or the defaults.
func FromContext(ctx context.Context) *Config {
	if cfgm, ok := ctx.Value(contextKey{}).(*ConfigManager); ok && cfgm != nil {
		return cfgm.Config
	}

	return C.Config
}
