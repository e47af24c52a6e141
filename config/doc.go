// Package config loads runtime settings from YAML files and LODCACHE_*
// environment variables and turns them into cache options, eviction
// policies, data sources and loggers.
package config
