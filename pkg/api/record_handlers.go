package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
	"github.com/miamirp/cityrecords/pkg/storage"
)

// RecordHandlers serves the CRUD routes of one record kind
type RecordHandlers struct {
	kind   rbac.Kind
	schema *records.Schema
	store  storage.RecordStore
}

// NewRecordHandlers creates handlers for kind
func NewRecordHandlers(kind rbac.Kind, store storage.RecordStore) *RecordHandlers {
	return &RecordHandlers{
		kind:   kind,
		schema: records.MustSchema(kind),
		store:  store,
	}
}

// RegisterRoutes registers /api/<path> routes guarded by s.
func (h *RecordHandlers) RegisterRoutes(router *mux.Router, s *Server) {
	base := "/api/" + h.kind.Path()

	// Literal segments first so they do not match {id}
	router.Handle(base+"/search", s.protect(h.kind, rbac.OpSearch, h.search)).Methods("GET")

	router.Handle(base, s.protectRead(h.kind, h.list)).Methods("GET")
	router.Handle(base, s.protect(h.kind, rbac.OpCreate, h.create)).Methods("POST")
	router.Handle(base+"/{id}", s.protect(h.kind, rbac.OpGet, h.get)).Methods("GET")
	router.Handle(base+"/{id}", s.protect(h.kind, rbac.OpUpdate, h.update)).Methods("PUT", "PATCH")
	router.Handle(base+"/{id}", s.protect(h.kind, rbac.OpDelete, h.delete)).Methods("DELETE")
}

// list handles GET /api/<path>, searching when ?search= or ?q= is set
func (h *RecordHandlers) list(w http.ResponseWriter, r *http.Request) {
	var (
		recs []records.Record
		err  error
	)
	if term := httputil.SearchTerm(r); term != "" {
		recs, err = h.store.Search(r.Context(), h.kind, term)
	} else {
		recs, err = h.store.List(r.Context(), h.kind)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recs)
}

// search handles GET /api/<path>/search?q=
func (h *RecordHandlers) search(w http.ResponseWriter, r *http.Request) {
	term := httputil.SearchTerm(r)
	if !httputil.RequireNonEmpty(w, term, "q") {
		return
	}

	recs, err := h.store.Search(r.Context(), h.kind, term)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recs)
}

// get handles GET /api/<path>/{id}
func (h *RecordHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.store.Get(r.Context(), h.kind, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, rec)
}

// create handles POST /api/<path>
func (h *RecordHandlers) create(w http.ResponseWriter, r *http.Request) {
	values, ok := h.decode(w, r, records.ModeCreate)
	if !ok {
		return
	}

	rec, err := h.store.Create(r.Context(), h.kind, values, actorID(r))
	if err != nil {
		h.writeWriteError(w, r, values, err)
		return
	}

	httputil.WriteCreated(w, rec)
}

// update handles PUT and PATCH /api/<path>/{id}. Both are partial.
func (h *RecordHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	values, ok := h.decode(w, r, records.ModeUpdate)
	if !ok {
		return
	}

	rec, err := h.store.Update(r.Context(), h.kind, id, values, actorID(r))
	if err != nil {
		h.writeWriteError(w, r, values, err)
		return
	}
	httputil.WriteSuccess(w, rec)
}

// delete handles DELETE /api/<path>/{id}
func (h *RecordHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	deleted, err := h.store.Delete(r.Context(), h.kind, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		httputil.WriteNotFoundError(w, "not found")
		return
	}
	httputil.WriteNoContent(w)
}

// decode parses and validates the request body against the kind's schema.
func (h *RecordHandlers) decode(w http.ResponseWriter, r *http.Request, mode records.Mode) (records.Values, bool) {
	body, err := httputil.ParseJSONObject(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return nil, false
	}

	values, err := h.schema.Validate(body, mode)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return values, true
}

func (h *RecordHandlers) writeWriteError(w http.ResponseWriter, r *http.Request, values records.Values, err error) {
	if errors.Is(err, storage.ErrInvalidReference) {
		writeReferenceError(w, h.schema, values)
		return
	}
	writeError(w, r, err)
}

// listByCitizen serves the rows of h's kind linked to the citizen in the
// named path variable.
func (h *RecordHandlers) listByCitizen(varName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		citizenID, ok := httputil.ParsePathInt64OrError(w, r, varName)
		if !ok {
			return
		}

		if _, err := h.store.Get(r.Context(), rbac.KindCitizen, citizenID); err != nil {
			writeError(w, r, err)
			return
		}

		recs, err := h.store.ListByCitizen(r.Context(), h.kind, citizenID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httputil.WriteSuccess(w, recs)
	}
}
