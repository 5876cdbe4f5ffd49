// Package buildsys implements a small task graph runner. Tasks are declared in Go (or in an optional
// Starlark script), validated once into a Graph and executed in dependency order. External tools are
// invoked through an embedded shell runtime based on mvdan.cc/sh so that commands behave the same on
// every platform.
package buildsys
