// Package config provides configuration structures and utilities for runpipe.
// It defines the runtime options for pipeline execution, the YAML
// configuration file with named pipelines, and report preferences.
package config
