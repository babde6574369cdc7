package api

import (
	"net/http"

	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
)

// registerCitizenViews registers the wanted list and the per-citizen child
// listings. They must precede the generic /{id} routes.
func (s *Server) registerCitizenViews() {
	wanted := s.protect(rbac.KindCitizen, rbac.OpListAll, s.listWanted)
	s.router.Handle("/api/wanted", wanted).Methods("GET")
	s.router.Handle("/api/citizens/wanted", wanted).Methods("GET")

	for _, kind := range records.CitizenChildren() {
		h := s.recordHandlersFor(kind)
		s.router.Handle("/api/citizens/{citizenId}/"+kind.Path(),
			s.protect(kind, rbac.OpListAll, h.listByCitizen("citizenId"))).Methods("GET")
	}

	// Older clients address some child lists from the child's side
	for _, kind := range []rbac.Kind{rbac.KindCriminalRecord, rbac.KindDriverLicense} {
		h := s.recordHandlersFor(kind)
		s.router.Handle("/api/"+kind.Path()+"/citizen/{citizenId}",
			s.protect(kind, rbac.OpListAll, h.listByCitizen("citizenId"))).Methods("GET")
	}
}

func (s *Server) recordHandlersFor(kind rbac.Kind) *RecordHandlers {
	for _, h := range s.recordHandlers {
		if h.kind == kind {
			return h
		}
	}
	panic("api: no handlers for kind " + string(kind))
}

// listWanted handles GET /api/wanted
func (s *Server) listWanted(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Records.Wanted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recs)
}
