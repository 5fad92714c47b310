// Package logging provides file-based structured logging with rotation
// for vectorcore. Logs are written as JSON via log/slog to a rotating
// file under ~/.vectorcore/logs/, and optionally mirrored to stderr.
package logging
