// Package logging configures structured slog output for rolodex.
//
// By default logs go to stderr as JSON. With --debug, logs are also written
// to ~/.rolodex/logs/ through a size-rotating writer.
package logging
