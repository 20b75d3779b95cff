// Package confloader loads layered configuration with koanf.
//
// Sources, lowest to highest priority:
//
//  1. Values already present in the target struct (defaults)
//  2. Configuration file (YAML)
//  3. Environment variables (AUTHCTL_SECTION_KEY)
//  4. Overrides registered with LoadMap, typically command-line flags
//
// Watcher reports changes to configuration files via fsnotify so
// long-running commands can reload selected settings.
package confloader
