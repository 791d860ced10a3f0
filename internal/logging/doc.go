// Package logging provides leveled logging for the photovault daemon.
//
// The log level is read once from the DEBUG and LOG_LEVEL environment
// variables; DEBUG=true forces debug output regardless of LOG_LEVEL.
// Messages below the configured level are dropped.
package logging
