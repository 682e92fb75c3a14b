// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the binary at link time:
//
//	go build -ldflags "-X lightshow/pkg/build.buildName=lightshow \
//	  -X lightshow/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds carry the defaults below.
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown by the CLI.
const Description = "Audio-reactive moving-head light controller"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "lightshow",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies the ldflags values into the build information. When any
// is missing it returns an error naming each one and the development
// defaults stay in place.
func Initialize() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	} {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
