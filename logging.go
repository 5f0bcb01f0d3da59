package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	colorBlack = iota + 30
	colorRed
	colorGreen
	colorYellow
	colorBlue
	colorMagenta
	colorCyan
	colorWhite

	colorBold     = 1
	colorDarkGray = 90
)

func colorize(s interface{}, c int, disabled bool) string {
	if disabled {
		return fmt.Sprintf("%s", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// lockedWriter keeps log lines written from the button loop, the HTTP
// server and the MQTT client from interleaving.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

var stdoutMu sync.Mutex

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func formatLevel(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		var l string
		if ll, ok := i.(string); ok {
			switch ll {
			case zerolog.LevelTraceValue:
				l = colorize("TRACE", colorMagenta, noColor)
			case zerolog.LevelDebugValue:
				l = colorize("DEBUG", colorYellow, noColor)
			case zerolog.LevelInfoValue:
				l = colorize("INFO ", colorGreen, noColor)
			case zerolog.LevelWarnValue:
				l = colorize("WARN ", colorRed, noColor)
			case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
				l = colorize(colorize(strings.ToUpper(ll), colorRed, noColor), colorBold, noColor)
			default:
				l = colorize(ll, colorBold, noColor)
			}
		} else if i == nil {
			l = colorize("???  ", colorBold, noColor)
		} else {
			l = strings.ToUpper(fmt.Sprintf("%-5s", i))[0:5]
		}

		return fmt.Sprintf("| %s |", l)
	}
}

func InitializeLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	noColor := !isatty.IsTerminal(os.Stdout.Fd())

	output := zerolog.ConsoleWriter{
		Out:         lockedWriter{mu: &stdoutMu, w: colorable.NewColorable(os.Stdout)},
		TimeFormat:  time.RFC3339,
		NoColor:     noColor,
		FormatLevel: formatLevel(noColor),
	}

	log.Logger = log.Output(output)
}

// SetLogLevel applies the configured level globally.
func SetLogLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("level", level.String()).Msg("Log level set")
}

// LoggerMiddleware logs every request to the control surface.
// Adapted from https://github.com/ironstar-io/chizerolog
func LoggerMiddleware(logger *zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				t2 := time.Now()

				if rec := recover(); rec != nil {
					logger.Error().
						Interface("recover_info", rec).
						Bytes("debug_stack", debug.Stack()).
						Msg("HTTP endpoint panic")

					http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}

				logger.Info().
					Str("type", "access").
					Timestamp().
					Fields(map[string]interface{}{
						"remote_ip":  r.RemoteAddr,
						"url":        r.URL.Path,
						"method":     r.Method,
						"status":     ww.Status(),
						"latency_ms": float64(t2.Sub(t1).Nanoseconds()) / 1000000.0,
						"bytes_out":  ww.BytesWritten(),
					}).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
