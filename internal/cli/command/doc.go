// Package command provides the authctl command definitions.
//
// Commands are built on urfave/cli/v2:
//
//   - root.go: application, global flags, shared runtime
//   - auth.go: login, logout, status
//   - profile.go: profile get and update
//   - request.go: authenticated calls against the API
//   - serve.go: local gateway that forwards with the stored session
//   - config.go: configuration inspection and init
//   - shell.go: interactive mode sharing one session across commands
//
// Every command resolves configuration and the session lazily, so
// commands that need neither (version, config init) work without a
// reachable server or a valid config file.
package command
