// Package repl implements the interactive loop behind "authctl shell".
//
//   - repl.go: read loop, builtins and argument splitting
//   - completer.go: prefix completion ("profile?" lists matches)
//   - history.go: command history persistence
//
// Command execution is delegated to an ExecFunc so the loop knows nothing
// about the commands it runs.
package repl
