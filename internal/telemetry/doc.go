// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package telemetry wires the OpenTelemetry SDK for sunyadvisor serve.
// When telemetry is disabled no exporter is created and the global providers
// stay noop, so spans started elsewhere cost nothing.
package telemetry
