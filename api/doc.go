// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package api holds the request and response bodies of the SunyAdvisor HTTP
// API.
//
// Chat endpoints take a session id chosen by the client; the authenticated
// user is taken from the bearer token:
//
//	POST /v1/chat/turn        {"session_id": "...", "message": "..."}
//	POST /v1/chat/new         {"session_id": "..."}
//	GET  /v1/chat/history     ?session_id=...&chat_id=...
//	GET  /v1/chat/ws          ?session_id=... ({"type": "turn", "message": "..."} per frame)
//
// Accounts and the strengths assessment:
//
//	POST /v1/auth/signup
//	POST /v1/auth/login
//	GET  /v1/assessment/questions
//	POST /v1/assessment
//	GET  /v1/profile
package api
