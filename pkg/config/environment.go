package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// BuildConfiguration is passed to the packager.
type BuildConfiguration string

const (
	Debug   BuildConfiguration = "Debug"
	Release BuildConfiguration = "Release"
)

// ParseBuildConfiguration accepts Debug or Release in any case.
func ParseBuildConfiguration(value string) (BuildConfiguration, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return Debug, nil
	case "release":
		return Release, nil
	}

	return "", eris.Errorf(`Invalid value for configuration: %s (must be Debug or Release)`, value)
}

// ciVariables are set by the supported CI providers.
var ciVariables = []string{
	"TF_BUILD",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CI",
	"JENKINS_URL",
	"TEAMCITY_VERSION",
	"APPVEYOR",
}

// IsServerBuild reports whether we're running on a CI server.
func IsServerBuild(lookup func(string) (string, bool)) bool {
	for _, name := range ciVariables {
		value, ok := lookup(name)
		if !ok {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(value)) {
		case "", "0", "false", "no":
			continue
		}

		return true
	}

	return false
}
