// Package helpers holds small functions shared by the storage backends and
// upstream providers: log-safe truncation of secrets and IP classification
// for SSRF checks.
package helpers
