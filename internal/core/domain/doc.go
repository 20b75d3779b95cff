// Package domain defines the core domain models for authctl.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - CredentialPair: the access/refresh bearer pair held by a session
//   - Envelope: the API response envelope and its token side channels
//   - Errors: domain-specific error definitions with stable codes
package domain
