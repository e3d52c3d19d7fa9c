// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package migration versions the SunyAdvisor schema with golang-migrate.

One migration set per dialect (postgres, mysql, sqlite) is embedded in the
binary. The sets create the same tables: conversation_history and
chat_summary for chat persistence, users and students for accounts and
profiles, and the strengths assessment tables (domains, themes, questions,
user_responses, theme_results, assessment_analysis).

The sunyadvisor migrate command drives a Migrator through CLI; serve calls
Apply on startup when database.auto_migrate is set. SQLite uses the pure-Go
glebarez driver so the binary builds without cgo.
*/
package migration
