// Package valkey provides a Valkey storage backend.
//
// Valkey is a key-value store that is wire-compatible with Redis. The Store
// type implements [storage.Store], making it suitable for deployments that
// share state between several server instances or need records to survive a
// restart.
//
// # Key Schema
//
// All keys use a configurable prefix (default "oauth2:") so several
// applications can share one Valkey instance:
//
//	{prefix}client:{clientID}      -> JSON(client)
//	{prefix}user:{username}        -> JSON(user)
//	{prefix}token:{accessToken}    -> JSON(token) (with TTL)
//	{prefix}refresh:{refreshToken} -> accessToken (with TTL)
//	{prefix}code:{code}            -> JSON(authorization code) (with TTL)
//
// Token and code keys expire through Valkey TTLs measured against
// Config.Now, so no cleanup goroutine is needed. Revoking a refresh token
// runs as a Lua script, so concurrent refresh requests cannot both win.
//
// # Usage
//
//	store, err := valkey.New(valkey.Config{
//		Address: "localhost:6379",
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	svc, err := storage.NewService(storage.Options{Store: store})
package valkey
