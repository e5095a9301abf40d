package config

import (
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

const (
	// EnvironmentDevelopment is the canonical development identifier.
	EnvironmentDevelopment = environmentDevelopment
	// EnvironmentProduction is the canonical production identifier.
	EnvironmentProduction = environmentProduction
	// EnvironmentStaging is the canonical staging identifier.
	EnvironmentStaging = environmentStaging
)

var environmentAliases = map[string]string{
	"prod":  environmentProduction,
	"stag":  environmentStaging,
	"stage": environmentStaging,
	"dev":   environmentDevelopment,
}

// getAppEnvironment reads APP_ENV and defaults to development.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath selects an environment specific configuration file
// when one is registered for the current environment and the caller did not
// ask for an explicit file.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}

	env := getAppEnvironment()
	if envPath, ok := envPaths[env]; ok {
		if path == defaultPath || path == envPath {
			if _, err := os.Stat(envPath); err == nil {
				return envPath
			}
		}
	}

	return path
}

// AppEnvironment exposes the normalised APP_ENV value.
func AppEnvironment() string {
	return getAppEnvironment()
}

// IsProductionLike reports whether the environment should be strict about
// shared infrastructure such as the Redis snapshot store.
func IsProductionLike(env string) bool {
	switch env {
	case environmentProduction, environmentStaging:
		return true
	default:
		return false
	}
}
