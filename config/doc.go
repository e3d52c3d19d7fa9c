// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package config defines SunyAdvisor's configuration tree and loads it from
// defaults, a YAML file, .env files and SUNYADVISOR_* environment variables.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithDotEnv(".env").
//	    Load()
//
// Later sources override earlier ones; a missing YAML or .env file is not an
// error.
package config
