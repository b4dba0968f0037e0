// Package config loads server configuration from GRANTOR_* environment
// variables with sensible defaults for everything except the database
// URL, which has no safe default and must be set explicitly.
//
// A minimal deployment needs exactly one variable:
//
//	GRANTOR_POSTGRES_URL=postgres://grantor:secret@db:5432/grantor?sslmode=require
//
// Everything else (ports, timeouts, log level, audit destinations, pool
// sizing) can be tuned but does not have to be.
package config
