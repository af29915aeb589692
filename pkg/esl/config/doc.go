// Package config provides map-backed configuration with typed accessors
// for event socket clients and servers.
//
// Values come from YAML or JSON files (FromFile) or a plain map (New).
// Accessors never fail; they fall back to the caller's default when a key
// is missing or mistyped, so wiring code stays linear:
//
//	cfg, err := config.FromFile("esl.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	addr := cfg.String("listen", "127.0.0.1:8084")
//	level := cfg.String("log_level", "info")
package config
