package rest

import (
	"net/http"
	"strconv"

	"github.com/homelend/platform/pkg/auth"
)

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleCEO, auth.RoleUnderwriter, auth.RoleAdmin); !ok {
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	summary, err := s.analytics.Pipeline(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDenialTrends(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleCEO, auth.RoleAdmin); !ok {
		return
	}
	q := r.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))

	trends, err := s.analytics.Denials(r.Context(), days, q.Get("product"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trends)
}
