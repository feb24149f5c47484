package controllers

import (
	"errors"
	"net/http"
	"sort"
	"tgmed/internal/providers"
	"tgmed/internal/services"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

const maxRequestBodySize = 1 << 20 // 1 MB

var errBadBody = errors.New("malformed request body")

type validationBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

// decodeBody reads a JSON body of at most 1 MB into dst and runs its
// validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadBody
	}
	return validateRequest(dst)
}

func validateRequest(dst any) error {
	v := validate.Struct(dst)
	if v.Validate() {
		return nil
	}
	fields := make([]string, 0, len(v.Errors))
	for f := range v.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return services.NewValidationError(fields[0], v.Errors.FieldOne(fields[0]))
}

// writeError maps reconciler and decoding failures onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, logger providers.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, errBadBody):
		providers.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody{Error: verr.Error(), Field: verr.Field})
	default:
		logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s [%s]: %s", r.Method, r.URL.Path, providers.RequestIDFromContext(r.Context()), err)
		providers.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// tgidOf reads the identity set by TelegramAuth. Handlers behind the
// middleware always have it.
func tgidOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	tgid, ok := providers.TgIDFromContext(r.Context())
	if !ok {
		providers.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return tgid, ok
}
