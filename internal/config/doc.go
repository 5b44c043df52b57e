// Package config loads the process configuration for deflectd.
//
// Configuration is layered: built-in development defaults, then an optional
// YAML file, then environment variables using the upstream service's
// historical names (MAIN_SERVICE_BASE_URL, CALLBACK_AUTH_TOKEN, ...).
// The resulting Config is immutable after startup; workers never read
// ambient state. Watch reports config-file drift but never swaps the
// running configuration — a restart picks changes up.
package config
