// Package logger provides structured logging for authctl on top of
// log/slog.
//
// Every logger built by New runs records through a handler that redacts
// bearer strings, JWTs and values stored under credential-like keys, so
// access and refresh tokens never reach the log output in clear. A logger
// bound to a context with WithContext also logs the request ID stored by
// WithRequestID.
package logger
