// Package config defines the application configuration structure and
// loading logic. Settings come from environment variables (prefixed with
// SUPERMODEL_), an optional config.yaml file, and built-in defaults, in
// that order of precedence, and are validated before use.
package config
