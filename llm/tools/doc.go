// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package tools holds the tool registry and executor used by agents for
function calling.

A tool is a [ToolFunc] registered under a name together with a JSON schema.
[DefaultExecutor] resolves calls against a [ToolRegistry], applies the
per-tool timeout and optional rate limit, and always returns a
[ToolResult]: failures are carried in its Error field so the model can see
them and recover.
*/
package tools
