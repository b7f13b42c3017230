// Package logging provides structured logging for attrcycled.
//
// It wraps log/slog and adds the service name and build version to every
// entry. Components take a child logger:
//
//	logger := logging.New(cfg.Logging, version)
//	store.SetLogger(logger.Component("settings"))
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT or Redis passwords or the InfluxDB token.
package logging
