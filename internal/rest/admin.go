package rest

import (
	"net/http"

	"github.com/homelend/platform/pkg/auth"
)

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	result, err := s.seeder.Run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
