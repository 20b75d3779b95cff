// Package main provides the entry point for authctl.
//
// authctl keeps a signed-in session against an HTTP API and performs
// authenticated calls with it, rotating the credential pair transparently:
//
//   - Session: login, logout, status
//   - Calls: request METHOD PATH, profile get/update
//   - Gateway: serve, a local HTTP endpoint that forwards /api calls
//   - Interactive mode: shell
//
// Usage:
//
//	authctl login -u alice --password-stdin
//	authctl request GET /orders?page=2
//	authctl -o json profile get
//	authctl serve --listen 127.0.0.1:8787
package main
