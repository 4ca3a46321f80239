package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bracketlab/tournament-engine/brackets"
	"github.com/bracketlab/tournament-engine/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"tournament not found", services.ErrTournamentNotFound, http.StatusNotFound},
		{"participant not found", services.ErrParticipantNotFound, http.StatusNotFound},
		{"bracket not generated", services.ErrBracketNotGenerated, http.StatusNotFound},
		{"no active match", brackets.ErrNoActiveMatch, http.StatusNotFound},
		{"logo not set", services.ErrLogoNotSet, http.StatusNotFound},
		{"already joined", services.ErrAlreadyJoined, http.StatusConflict},
		{"license taken", services.ErrLicenseNumberTaken, http.StatusConflict},
		{"name conflict", services.ErrTournamentNameConflict, http.StatusConflict},
		{"tournament full", services.ErrTournamentFull, http.StatusConflict},
		{"bracket already generated", services.ErrBracketAlreadyGenerated, http.StatusConflict},
		{"name required", services.ErrTournamentNameRequired, http.StatusBadRequest},
		{"invalid result", services.ErrInvalidResult, http.StatusBadRequest},
		{"participants locked", services.ErrParticipantsLocked, http.StatusBadRequest},
		{"too few participants", brackets.ErrInsufficientParticipants, http.StatusBadRequest},
		{"duplicate submission", brackets.ErrDuplicateSubmission, http.StatusBadRequest},
		{"registration closed", services.ErrRegistrationClosed, http.StatusForbidden},
		{"forbidden operation", services.ErrForbiddenOperation, http.StatusForbidden},
		{"logo storage unavailable", services.ErrLogoStorageUnavailable, http.StatusServiceUnavailable},
		{"unexpected error", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/tournaments/1/join", nil)

			mapServiceErrorToHTTP(rec, req, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body, "error")
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Cup"}`, ""},
		{"empty body", ``, "body must not be empty"},
		{"malformed", `{"name":`, "badly-formed JSON"},
		{"unknown field", `{"nome":"Cup"}`, "unknown key"},
		{"wrong type", `{"name":7}`, "incorrect JSON type"},
		{"trailing value", `{"name":"Cup"}{"name":"Other"}`, "single JSON value"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/tournaments", strings.NewReader(tc.body))

			var dst payload
			err := readJSON(rec, req, &dst)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Cup", dst.Name)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
