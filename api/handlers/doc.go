// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package handlers implements the SunyAdvisor HTTP API.

Every JSON endpoint answers with the Response envelope: success, data or
error, and a timestamp. Errors carry a types.ErrorCode which is mapped to an
HTTP status; failures without a code are reported as INTERNAL_ERROR and
their cause is only logged.

# Handlers

  - ChatHandler: turns, new chats, history and a websocket that carries one
    turn per JSON frame
  - AuthHandler: signup and login, returning a bearer token
  - AssessmentHandler: the strengths questionnaire and profile
  - HealthHandler: liveness, readiness checks and build version

# Middleware

NewRouter registers the routes and wraps them in Recovery, RequestID,
optional OpenTelemetry tracing and Prometheus metrics, SecurityHeaders,
CORS, BearerAuth, RequestLogger and a per-user RateLimiter. PublicPaths
lists the routes served without a token.
*/
package handlers
