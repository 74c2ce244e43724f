package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/regimen-forecast/allocation"
	"github.com/giygas/regimen-forecast/dosing"
	"github.com/giygas/regimen-forecast/forecast"
	"github.com/giygas/regimen-forecast/inputs"
	"github.com/giygas/regimen-forecast/logging"
	"github.com/giygas/regimen-forecast/validation"
)

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err, "payload_type", fmt.Sprintf("%T", payload))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// unprocessable lists the input errors reported as 422
var unprocessable = []error{
	validation.ErrInvalidShares,
	validation.ErrInvalidRate,
	validation.ErrInvalidPopulation,
	validation.ErrInvalidTaxonomy,
	allocation.ErrAmbiguousRegimenSplit,
	allocation.ErrInvalidTimeOnTreatment,
	dosing.ErrInvalidDose,
	dosing.ErrInvalidInterval,
	forecast.ErrInvalidHorizon,
}

// statusForError maps a computation error to an HTTP status code
func statusForError(err error) int {
	if errors.Is(err, inputs.ErrMalformedInput) {
		return http.StatusBadRequest
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// respondWithComputeError logs and writes a computation error
func respondWithComputeError(w http.ResponseWriter, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		logging.Error("Computation failed", "error", err)
		RespondWithError(w, code, "Computation failed")
		return
	}
	logging.Debug("Rejected computation input", "error", err)
	RespondWithError(w, code, err.Error())
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
