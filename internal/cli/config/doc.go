// Package config defines the authctl configuration file
// (~/.authctl/config.yaml) and how it is layered with AUTHCTL_*
// environment variables and command-line flags.
package config
