package api

import (
	"encoding/json"
	"net/http"

	"github.com/carelink/telemed-booking/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeValidationError(w http.ResponseWriter, verr *appointment.ValidationError) {
	fields := make([]FieldErrorResponse, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, FieldErrorResponse{Field: f.Field, Message: f.Message})
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Details: "one or more fields are invalid",
		Fields:  fields,
	})
}
