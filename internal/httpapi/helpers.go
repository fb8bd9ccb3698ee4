package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"krafti/internal/pipeline"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"success": false, "message": msg})
}

// respondFailure maps pipeline errors onto HTTP statuses.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := pipeline.IsValidation(err); ok {
		respondError(w, http.StatusUnprocessableEntity, verr.Message)
		return
	}
	switch {
	case errors.Is(err, pipeline.ErrUnknownEntity):
		respondError(w, http.StatusNotFound, "Unknown entity")
	case errors.Is(err, pipeline.ErrNotFound):
		respondError(w, http.StatusNotFound, "Record not found")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// properties merges query parameters with a JSON object body. Body keys win.
// Repeated parameters and names ending in [] become string slices.
func properties(r *http.Request) (pipeline.Properties, error) {
	props := pipeline.Properties{}
	for key, values := range r.URL.Query() {
		name := strings.TrimSuffix(key, "[]")
		if len(values) == 1 && name == key {
			props[name] = values[0]
			continue
		}
		list := make([]string, len(values))
		copy(list, values)
		props[name] = list
	}

	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodDelete {
		return props, nil
	}
	defer r.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return props, nil
		}
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	for k, v := range body {
		props[k] = v
	}
	return props, nil
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// clientIP strips the port RemoteAddr carries when no proxy header rewrote it.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// recordID reads the ID field of a saved model or prepared row.
func recordID(v any) uint {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return 0
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return 0
	}
	f := rv.FieldByName("ID")
	if !f.IsValid() || !f.CanUint() {
		return 0
	}
	return uint(f.Uint())
}
