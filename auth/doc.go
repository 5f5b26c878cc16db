// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identity tokens and ID generation.

# Principal Tokens

Principals arrive as HS256 JWTs issued by an external identity provider.
The token carries the whole principal under a "user" claim:

	p, err := auth.ParseToken(token, secret)

Expired tokens, tokens signed with another algorithm and tokens without a
principal ID are rejected with ErrInvalidToken. IssueToken exists for the
CLI and for tests.

# ID Generation

Database rows use random UUIDs:

	id := auth.GenerateID()
*/
package auth
