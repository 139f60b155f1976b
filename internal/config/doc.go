// Package config provides centralized configuration management.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern ENERGY_<SECTION>_<FIELD>:
//
//	ENERGY_SERVER_PORT=8080
//	ENERGY_LOGGING_LEVEL=debug
//	ENERGY_PROCESSING_MODE=strict
//	ENERGY_PROCESSING_TIMEZONE=America/Sao_Paulo
//	ENERGY_JOBS_RESULT_TTL=2h
//
// # Paths
//
// Relative directories resolve against paths.base_dir, which defaults to the
// directory holding the executable. Use ResolvePaths to obtain absolute
// directories and EnsureDirectories to create them.
package config
