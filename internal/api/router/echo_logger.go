package router

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// echoLogger forwards echo's own log output (e.g. startup failures) to zerolog.
type echoLogger struct {
	level zerolog.Level
}

func (l *echoLogger) Write(p []byte) (int, error) {
	log.WithLevel(l.level).Str("component", "echo").Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}
