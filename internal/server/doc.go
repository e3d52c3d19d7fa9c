// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package server manages the lifecycle of the API and metrics listeners
// started by sunyadvisor serve.
package server
