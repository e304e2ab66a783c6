package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/pkg/errors"
	"github.com/propsage/compval/pkg/types/common"
)

// maxRequestBody bounds request payloads accepted by the JSON decoder.
const maxRequestBody = 1 << 20 // 1 MiB

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding failures past WriteHeader are unrecoverable; the client
	// sees a truncated body either way.
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code errors.ErrorCode, message string) {
	writeJSON(w, status, common.NewErrorResponse(string(code), message))
}

// writeAppError maps an application error onto an HTTP response. Server
// side errors are masked so internal details never reach the client.
func writeAppError(w http.ResponseWriter, logger logging.Logger, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", logging.String("code", string(code)), logging.Err(err))
		message = errors.DefaultMessageForCode(code)
	}
	writeError(w, status, code, message)
}

// decodeJSON reads a bounded JSON body into dest, rejecting unknown
// fields so client typos surface as 400s instead of silent defaults.
func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body")
	}
	return nil
}

// parsePagination extracts page/page_size query parameters with the
// shared defaults and caps applied.
func parsePagination(r *http.Request) (common.Pagination, error) {
	p := common.Pagination{Page: 1, PageSize: 50}

	if raw := r.URL.Query().Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, errors.InvalidParam("page must be an integer")
		}
		p.Page = v
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, errors.InvalidParam("page_size must be an integer")
		}
		p.PageSize = v
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
