// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package database opens the relational store behind conversation history,
accounts, student profiles and assessments.

Open picks a gorm dialector from config.DatabaseConfig (postgres, mysql or
the pure-Go glebarez sqlite) and hands the result to a PoolManager, which
sizes the database/sql pool, pings it periodically and runs transactions
with retry on deadlocks and serialization failures.
*/
package database
