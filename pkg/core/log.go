package core

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Logger zerolog.Logger

// InitLogger sets up the global console logger. Colors are disabled
// when stdout is not a terminal. The level defaults to info and can be
// overridden with AUX_LOG (trace, debug, info, warn, error).
func InitLogger() zerolog.Logger {
	console := &zerolog.ConsoleWriter{Out: os.Stdout}
	console.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
	console.TimeFormat = "15:04:05.000"

	lvl, err := zerolog.ParseLevel(os.Getenv("AUX_LOG"))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	Logger = zerolog.New(console).Level(lvl).With().Timestamp().Logger()

	return Logger
}
