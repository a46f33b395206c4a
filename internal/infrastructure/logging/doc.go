// Package logging provides structured logging for Railrunner.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version fields. Components receive a *Logger (usually a
// Component child) through their SetLogger methods.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets such as the JWT secret or the InfluxDB token.
package logging
