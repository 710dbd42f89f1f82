// Package config loads agent-chat configuration.
//
// Values come from built-in defaults, then a YAML or TOML file, then
// AGENTCHAT_* environment variables, with later sources winning.
package config
