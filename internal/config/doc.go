// Package config loads stylebatch settings from defaults, an optional YAML
// file and STYLEBATCH_ environment variables, then validates them. Stage
// specific requirements such as an API key are checked separately with
// Config.Require so that commands only demand what they use.
package config
