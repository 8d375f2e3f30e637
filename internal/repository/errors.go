// Package repository holds the stores behind the catalog, the reservation
// ledger and accounts: an in-memory store for development and tests, and
// database/sql repositories for MySQL and Postgres.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a reservation would overlap a non-cancelled
// reservation on the same court and date.
var ErrConflict = errors.New("conflict")

// ErrStale is returned by compare-and-set status updates when the stored
// status no longer matches the expected one.
var ErrStale = errors.New("stale status")

// ErrEmailExists is returned when registering an address already in use.
var ErrEmailExists = errors.New("email already exists")

// ErrOTPMismatch is returned when a verification code does not match the
// pending one.
var ErrOTPMismatch = errors.New("otp mismatch")
