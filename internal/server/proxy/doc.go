// Package proxy implements the local authenticated gateway behind
// "authctl serve".
//
// Requests under /api/ are replayed through a session.Manager, so local
// programs reach the API without handling credentials. Rotation headers
// from the API are consumed by the manager and never reach the caller.
//
// Routes:
//
//	/api/...     forwarded
//	GET /healthz gateway and session state
//	GET /metrics prometheus exposition
package proxy
