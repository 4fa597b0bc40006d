// Package info exposes build metadata for the /info endpoint.
package info

import (
	"runtime"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go"`
	Backend   string `json:"backend"`
}

// Collect assembles build metadata. Version falls back to "devel" outside
// a module-aware build.
func Collect(backend string) Info {
	version := "devel"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		version = bi.Main.Version
	}
	return Info{
		Version:   version,
		GoVersion: runtime.Version(),
		Backend:   backend,
	}
}
