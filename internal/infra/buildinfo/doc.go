// Package buildinfo exposes build information for authctl.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/authctl/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/authctl/internal/infra/buildinfo.Commit=abc123"
//
// When Commit is not injected it falls back to the VCS revision recorded
// by the Go toolchain, and GoVersion always comes from the runtime.
package buildinfo
