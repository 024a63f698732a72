// Package redis provides Redis-backed implementations of store interfaces
// that need fast, expiring reads rather than durable relational storage.
// Currently that is the token revocation list, where entries expire on
// their own once the token they shadow can no longer be valid.
package redis
