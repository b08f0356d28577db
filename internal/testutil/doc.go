// Package testutil provides a controllable clock and record fixtures for the
// authorization server tests.
package testutil
