// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, record)
//	httputil.WriteCreated(w, record)
//	httputil.WriteNoContent(w)
//
// Error responses share one body shape, {"error": "...", "details": {...}}:
//
//	httputil.WriteBadRequest(w, "invalid id")
//	httputil.WriteFieldErrors(w, "invalid data", map[string]string{"year": "must be an integer"})
//	httputil.WriteForbidden(w, "insufficient permissions")
//
// # Request Parsing
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	body, err := httputil.ParseJSONObject(r) // numbers kept as json.Number
//	term := httputil.SearchTerm(r)           // ?search= or ?q=
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.TimeoutMiddleware(15*time.Second),
//	)(router)
package httputil
