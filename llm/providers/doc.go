// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package providers holds the pieces shared by the HTTP model clients.

It maps HTTP and transport failures onto types.Error with the right retry
flag ([MapHTTPError], [TransportError]) and converts between the advisor's
message log and the OpenAI-compatible wire format
([ConvertMessagesToOpenAI], [ConvertToolsToOpenAI], [ToLLMChatResponse]).
The chat client itself lives in providers/openaicompat; the embedding and
rerank clients reuse the error mapping.
*/
package providers
