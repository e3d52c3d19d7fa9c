// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package openaicompat is the chat client for any server speaking the
// OpenAI chat completions API: hosted OpenAI, or vLLM, Ollama and LiteLLM
// running next to the advisor.
//
//	p := openaicompat.New(openaicompat.Config{
//	    APIKey:  cfg.APIKey,
//	    BaseURL: "https://api.openai.com",
//	}, logger)
//
// The agents name their model per request. Tool schemas go out as function
// tools, and the profile analyzer's JSON output is requested through
// response_format.
package openaicompat
