/*
Package config provides bus configuration from files, maps, and the
environment.

# Overview

config wraps a map[string]any and provides typed accessor methods that
handle missing keys and type mismatches gracefully by returning default
values. Settings collects the recognized bus options in plain data
form, loadable from such a map or from EVENTA_* environment variables.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "rpc_timeout": "5s",
	    "debug":       true,
	})

	timeout := cfg.Duration("rpc_timeout", 30*time.Second) // 5s
	debug := cfg.Bool("debug", false)                      // true
	missing := cfg.String("missing", "default")            // "default"

Or load a file and hand the settings to the bus:

	s, err := config.Load("eventa.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	opts, err := s.Options()
	if err != nil {
	    log.Fatal(err)
	}
	bus := eventa.New(opts...)

# Environment

FromEnv reads the same settings from the environment:

	EVENTA_CONTEXT_ID, EVENTA_RPC_TIMEOUT, EVENTA_DEBUG, EVENTA_JOURNAL_PATH

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
