package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/observability"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
	"github.com/miamirp/cityrecords/pkg/storage"
)

const invalidData = "invalid data"

// writeError maps domain errors to HTTP responses. Unexpected errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *records.ValidationError

	switch {
	case errors.As(err, &verr):
		httputil.WriteFieldErrors(w, invalidData, verr.Fields)
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, rootMessage(err))
	case errors.Is(err, rbac.ErrForbidden):
		httputil.WriteForbidden(w, rbac.ErrForbidden.Error())
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFoundError(w, "not found")
	case errors.Is(err, storage.ErrInvalidReference):
		httputil.WriteFieldErrors(w, invalidData, map[string]string{"reference": storage.ErrInvalidReference.Error()})
	case errors.Is(err, storage.ErrConflict):
		// Driver detail stays in the log
		observability.FromContext(r.Context()).WithError(err).Debug("write conflict")
		httputil.WriteConflict(w, storage.ErrConflict.Error())
	case errors.Is(err, context.DeadlineExceeded):
		observability.FromContext(r.Context()).WithError(err).Warn("request timed out")
		httputil.WriteGatewayTimeout(w, "request timed out")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
	}
}

func rootMessage(err error) string {
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return auth.ErrInvalidCredentials.Error()
	}
	return auth.ErrUnauthenticated.Error()
}

// writeReferenceError reports a dangling reference against the schema's
// reference fields present in the payload.
func writeReferenceError(w http.ResponseWriter, schema *records.Schema, values records.Values) {
	details := map[string]string{}
	for _, f := range schema.Fields {
		if f.Ref == "" {
			continue
		}
		if _, ok := values[f.Name]; ok {
			details[f.Name] = "must reference an existing " + string(f.Ref)
		}
	}
	if len(details) == 0 {
		details["reference"] = storage.ErrInvalidReference.Error()
	}
	httputil.WriteFieldErrors(w, invalidData, details)
}
