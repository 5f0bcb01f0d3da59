package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"gregoryjjb/gpiocount/button"
	"gregoryjjb/gpiocount/controller"
	"gregoryjjb/gpiocount/gpio"
	"gregoryjjb/gpiocount/leds"
)

// maxAttributeBody bounds attribute writes; the longest valid value is an
// 8 pin descriptor.
const maxAttributeBody = 4096

type BuildInfo struct {
	Version    string    `json:"version"`
	BuildTime  time.Time `json:"build_time"`
	CommitHash string    `json:"commit_hash"`
}

/////////////////////
// Response helpers

func RespondInternalServiceError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	RespondText(w, err.Error())
}

func RespondNotFoundError(w http.ResponseWriter, body string) {
	w.WriteHeader(http.StatusNotFound)
	if body == "" {
		body = "Not found"
	}
	RespondText(w, body)
}

func RespondBadRequest(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusBadRequest)
	RespondText(w, message)
}

func RespondText(w http.ResponseWriter, body string) {
	w.Write([]byte(body))
}

func RespondJSON(w http.ResponseWriter, body any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		RespondInternalServiceError(w, err)
	}
}

// RespondError picks a status code from the error kind.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrUnknownAttribute):
		RespondNotFoundError(w, err.Error())
	case errors.Is(err, controller.ErrWriteOnly):
		w.WriteHeader(http.StatusMethodNotAllowed)
		RespondText(w, err.Error())
	case errors.Is(err, controller.ErrNotNumeric),
		errors.Is(err, leds.ErrEmptyField),
		errors.Is(err, leds.ErrDigitOverflow),
		errors.Is(err, leds.ErrNotNumeric),
		errors.Is(err, leds.ErrAlreadyAssigned),
		errors.Is(err, gpio.ErrInvalidPin),
		errors.Is(err, button.ErrInterruptRegistration):
		RespondBadRequest(w, err.Error())
	case errors.Is(err, controller.ErrClosed):
		w.WriteHeader(http.StatusServiceUnavailable)
		RespondText(w, err.Error())
	default:
		RespondInternalServiceError(w, err)
	}
}

func NewRouter(info BuildInfo, ctrl *controller.Controller) http.Handler {
	logger := log.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(&logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			RespondJSON(w, info)
		})

		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Cache-Control", "no-cache, no-store")
			RespondJSON(w, ctrl.State())
		})

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			RespondJSON(w, ctrl.History())
		})

		r.Get("/events", createWebsocketHandler(ctrl))

		r.Get("/attr", func(w http.ResponseWriter, r *http.Request) {
			RespondJSON(w, controller.Attributes)
		})

		// Attributes read and write as plain text, one value per line
		r.Get("/attr/{name}", func(w http.ResponseWriter, r *http.Request) {
			value, err := ctrl.Get(chi.URLParam(r, "name"))
			if err != nil {
				RespondError(w, err)
				return
			}
			w.Header().Add("Content-Type", "text/plain; charset=utf-8")
			RespondText(w, value+"\n")
		})

		setAttribute := func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxAttributeBody))
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}

			if err := ctrl.Set(chi.URLParam(r, "name"), string(body)); err != nil {
				RespondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
		r.Put("/attr/{name}", setAttribute)
		r.Post("/attr/{name}", setAttribute)
	})

	return r
}

// StartServer serves the control surface until ctx is done.
func StartServer(ctx context.Context, config *Config, info BuildInfo, ctrl *controller.Controller) error {
	srv := &http.Server{
		Addr:              config.Address(),
		Handler:           NewRouter(info, ctrl),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Msg("Server shutdown")
		}
	}()

	log.Info().Str("listen", srv.Addr).Msg("launching server")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
