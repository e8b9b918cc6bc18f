// Package logging configures the global zerolog logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/config"
)

// Setup configures console output and the global level. Pretty console
// logging in development, JSON elsewhere.
func Setup(cfg *config.Config) {
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	lvl := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			lvl = parsed
		}
	}
	zerolog.SetGlobalLevel(lvl)

	log.Info().
		Str("level", lvl.String()).
		Msg("Logger initialized")
}
