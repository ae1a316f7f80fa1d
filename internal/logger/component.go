// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"github.com/gobuffalo/envy"
)

// Component is an enumeration representing the "components" which can be logged against. A Level can be configured
// on a per-component basis.
type Component int

const (
	// ComponentAll enables logging for all components.
	ComponentAll Component = iota

	// ComponentPool enables logging of pool lifecycle messages: creation, close and release handling.
	ComponentPool

	// ComponentCheckout enables logging of checkout diagnostics: owner limit warnings and full pool warnings.
	ComponentCheckout

	// ComponentReaper enables logging of the background idle connection reaper.
	ComponentReaper
)

// ComponentLiteral is an enumeration representing the string literal "components" which can be logged against.
type ComponentLiteral string

const (
	ComponentLiteralAll      ComponentLiteral = "all"
	ComponentLiteralPool     ComponentLiteral = "pool"
	ComponentLiteralCheckout ComponentLiteral = "checkout"
	ComponentLiteralReaper   ComponentLiteral = "reaper"
)

// Component returns the Component for the given ComponentLiteral.
func (componentLiteral ComponentLiteral) Component() Component {
	switch componentLiteral {
	case ComponentLiteralPool:
		return ComponentPool
	case ComponentLiteralCheckout:
		return ComponentCheckout
	case ComponentLiteralReaper:
		return ComponentReaper
	default:
		return ComponentAll
	}
}

// String returns the literal for the component.
func (component Component) String() string {
	switch component {
	case ComponentPool:
		return string(ComponentLiteralPool)
	case ComponentCheckout:
		return string(ComponentLiteralCheckout)
	case ComponentReaper:
		return string(ComponentLiteralReaper)
	default:
		return string(ComponentLiteralAll)
	}
}

type componentEnvVar string

const (
	componentEnvVarAll      componentEnvVar = "AGINGPOOL_LOG_ALL"
	componentEnvVarPool     componentEnvVar = "AGINGPOOL_LOG_POOL"
	componentEnvVarCheckout componentEnvVar = "AGINGPOOL_LOG_CHECKOUT"
	componentEnvVarReaper   componentEnvVar = "AGINGPOOL_LOG_REAPER"
)

var allComponentEnvVars = []componentEnvVar{
	componentEnvVarAll,
	componentEnvVarPool,
	componentEnvVarCheckout,
	componentEnvVarReaper,
}

func (env componentEnvVar) component() Component {
	switch env {
	case componentEnvVarPool:
		return ComponentPool
	case componentEnvVarCheckout:
		return ComponentCheckout
	case componentEnvVarReaper:
		return ComponentReaper
	default:
		return ComponentAll
	}
}

// getEnvComponentLevels returns the component levels set through environment variables, as seen by envy so that
// values loaded from dotenv files are included. AGINGPOOL_LOG_ALL is kept under ComponentAll and applies to every
// component without its own variable.
func getEnvComponentLevels() map[Component]Level {
	componentLevels := make(map[Component]Level)

	for _, envVar := range allComponentEnvVars {
		value := envy.Get(string(envVar), "")
		if value == "" {
			continue
		}
		level, ok := ParseLevel(value)
		if !ok {
			continue
		}
		componentLevels[envVar.component()] = level
	}

	return componentLevels
}
