// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package account implements student sign-up and login. Passwords are
// stored as bcrypt hashes and sessions are HS256 JWTs whose subject is the
// user id.
package account
