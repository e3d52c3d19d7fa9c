// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package persistence stores conversation history and session counters.

  - MessageStore persists every message of a chat in append order.
    GormMessageStore writes the conversation_history and chat_summary tables;
    MemoryMessageStore is for tests and local runs.
  - SessionStore tracks the current chat id of a session and how many user
    messages it has seen. RedisSessionStore lets several API replicas share
    that state; MemorySessionStore is the default.

Both stores return ErrNotFound for missing rows and ErrInvalidInput for
messages without a session id.
*/
package persistence
