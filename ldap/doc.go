/*
Package ldap exposes the go-ldap client through context-aware, future-based
operations.

The package owns no protocol logic. A Client holds one connection from
github.com/go-ldap/ldap/v3 and forwards every call to it unchanged: requests
and controls go in as given, and results and errors come back exactly as the
wrapped connection returned them.

# Operations

Every operation comes in two forms:

  - XxxAsync starts the call on its own goroutine and returns a *Future.
  - Xxx waits for that future, bounded by a context.

The forwarded operations are Bind, GSSAPIBind, ExternalBind, Add, Compare,
Del, Modify, ModifyDN, Rename, Search, SearchWithPaging, StartTLS,
PasswordModify, WhoAmI and Unbind. SearchStream returns go-ldap's streaming
response directly.

# Futures

A Future settles once. Await returns early with ctx.Err() when its context
ends, but the underlying request is not cancelled and the future still
settles when the server answers.

# Events

Clients emit connect, connectError, request, result, error, close and destroy
events. Handlers run synchronously before the corresponding future settles.

# Logging

Operations are logged through the "ldap" tflog subsystem. The level is read
from the LDAPASYNC_LOG_LEVEL environment variable. Passwords are redacted.

# Example Usage

	client, err := ldap.Dial(ctx, &ldap.Options{URL: "ldaps://dc1.example.com"})
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Bind(ctx, "cn=admin,dc=example,dc=com", password); err != nil {
		return err
	}

	pending := client.SearchAsync(goldap.NewSearchRequest(
		"dc=example,dc=com", goldap.ScopeWholeSubtree, goldap.NeverDerefAliases,
		0, 0, false, "(objectClass=person)", []string{"cn"}, nil,
	))
	result, err := pending.Await(ctx)
*/
package ldap
