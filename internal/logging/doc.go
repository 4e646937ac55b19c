// Package logging provides a simple leveled logging interface for the
// indexer.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions (skipped files, malformed sidecars)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable and
// can be raised at startup with the CLI -v/-vv flags via SetVerbosity.
// The default is WARN so that batch runs only report problems.
package logging
