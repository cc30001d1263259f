// SPDX-License-Identifier: MIT
//
// Package build carries build metadata (name, version, commit, build time)
// injected at compile time via -ldflags, for example:
//
//	go build -ldflags "-X webradio/pkg/build.buildName=webradio \
//	    -X webradio/pkg/build.buildVersion=0.1.0"
//
// Development builds without ldflags fall back to "dev" placeholders.
package build

type Flags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	buildFlags = &Flags{
		Name:    "webradio",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies build information from the ldflags variables into the
// Flags struct. Call once, early in startup. Unset flags keep their
// development defaults.
func Initialize() {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Flags {
	return buildFlags
}
