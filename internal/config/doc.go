// Package config handles configuration loading for nurture-hub.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (selected by the .toml
// extension) on top of Default(), so a file only needs the values it changes.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from NURTURE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/nurture/hub.yaml
//  3. ~/.config/nurture/hub.yaml
//
// When no file exists the CLI runs on defaults plus environment overrides.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	session:
//	  secret: "${NURTURE_SESSION_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Environment Overrides
//
// After the file is decoded, NURTURE_* variables override individual fields:
//
//	NURTURE_DATABASE_PATH       database.path
//	NURTURE_LOG_LEVEL           logging.level
//	NURTURE_LOG_FORMAT          logging.format
//	NURTURE_IMAGES_EXPIRY       images.expiry
//	NURTURE_IMAGES_BASE_URL     images.base_url
//	NURTURE_PRELOAD_CRITICAL    preload.critical (comma separated)
//	NURTURE_SESSION_SECRET      session.secret
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	images:
//	  expiry: "168h"
//	  fetch_timeout: "5s"
//
// Negative durations are rejected.
package config
