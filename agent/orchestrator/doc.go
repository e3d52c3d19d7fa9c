// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package orchestrator runs a student's conversation across two agents.

The counselor talks to the student and always answers with an envelope
{phase, recipient, message}. When the recipient is "suny" the envelope is
forwarded to the knowledge agent, which searches the document index through
the rag_search tool. Its answer is wrapped back into a student envelope on
the counselor's log so later turns read it as the counselor's own reply.

An Orchestrator serves exactly one session. Its identity is passed in at
construction; chat ids come from a persistence.SessionStore and every
message is written to a persistence.MessageStore as it is appended. Turns
are serialised. Starting a new chat while a turn is in flight discards that
turn's results.
*/
package orchestrator
