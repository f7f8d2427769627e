package rest

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/homelend/platform/internal/analytics"
	"github.com/homelend/platform/internal/applications"
	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/compliance"
	"github.com/homelend/platform/internal/conditions"
	"github.com/homelend/platform/internal/decisions"
	"github.com/homelend/platform/internal/documents"
	"github.com/homelend/platform/internal/seed"
	"github.com/homelend/platform/pkg/auth"
)

// Server bundles the HTTP handlers and their service dependencies.
type Server struct {
	apps       *applications.Service
	docs       *documents.Service
	conditions *conditions.Service
	decisions  *decisions.Service
	compliance *compliance.Runner
	hmda       *compliance.HmdaService
	audit      *audit.Service
	analytics  *analytics.Service
	seeder     *seed.Seeder
	logger     *slog.Logger
}

// NewServer wires the REST server.
func NewServer(
	apps *applications.Service,
	docs *documents.Service,
	conditionsSvc *conditions.Service,
	decisionsSvc *decisions.Service,
	runner *compliance.Runner,
	hmda *compliance.HmdaService,
	auditSvc *audit.Service,
	analyticsSvc *analytics.Service,
	seeder *seed.Seeder,
	logger *slog.Logger,
) *Server {
	return &Server{
		apps:       apps,
		docs:       docs,
		conditions: conditionsSvc,
		decisions:  decisionsSvc,
		compliance: runner,
		hmda:       hmda,
		audit:      auditSvc,
		analytics:  analyticsSvc,
		seeder:     seeder,
		logger:     logger,
	}
}

// Routes registers every endpoint on the given router. The auth middleware
// is applied by the caller; handlers assume a principal in the context.
func (s *Server) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/applications/", s.handleCreateApplication).Methods(http.MethodPost)
	api.HandleFunc("/applications/", s.handleListApplications).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", s.handleGetApplication).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", s.handleUpdateFields).Methods(http.MethodPatch)
	api.HandleFunc("/applications/{id}/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/transition", s.handleTransition).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/borrowers", s.handleAddBorrower).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/borrowers/{bid}", s.handleRemoveBorrower).Methods(http.MethodDelete)
	api.HandleFunc("/applications/{id}/rate-lock", s.handleSetRateLock).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/rate-lock", s.handleGetRateLock).Methods(http.MethodGet)

	api.HandleFunc("/applications/{id}/documents", s.handleUploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/documents/{did}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/documents/{did}/content", s.handleDocumentContent).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/documents/{did}/extractions", s.handleExtractions).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/documents/{did}/review", s.handleReviewDocument).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/completeness", s.handleCompleteness).Methods(http.MethodGet)

	api.HandleFunc("/applications/{id}/conditions", s.handleIssueCondition).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/conditions", s.handleListConditions).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/conditions/{cid}/respond", s.handleRespondCondition).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/conditions/{cid}/review", s.handleReviewCondition).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/conditions/{cid}/clear", s.handleClearCondition).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/conditions/{cid}/return", s.handleReturnCondition).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/conditions/{cid}/waive", s.handleWaiveCondition).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/conditions/{cid}/escalate", s.handleEscalateCondition).Methods(http.MethodPost)

	api.HandleFunc("/applications/{id}/decisions", s.handleRenderDecision).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/decisions/propose", s.handleProposeDecision).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/decisions", s.handleListDecisions).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/decisions/{did}", s.handleGetDecision).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/risk", s.handleRisk).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/compliance/run", s.handleRunCompliance).Methods(http.MethodPost)

	api.HandleFunc("/hmda/collect", s.handleHmdaCollect).Methods(http.MethodPost)

	api.HandleFunc("/audit/verify", s.handleVerifyChain).Methods(http.MethodGet)
	api.HandleFunc("/audit/export", s.handleExportAudit).Methods(http.MethodGet)
	api.HandleFunc("/audit/decisions/{did}/trace", s.handleDecisionTrace).Methods(http.MethodGet)
	api.HandleFunc("/admin/audit", s.handleAdminAudit).Methods(http.MethodGet)
	api.HandleFunc("/admin/audit/violations", s.handleAuditViolations).Methods(http.MethodGet)
	api.HandleFunc("/admin/seed", s.handleSeed).Methods(http.MethodPost)

	api.HandleFunc("/analytics/pipeline", s.handlePipeline).Methods(http.MethodGet)
	api.HandleFunc("/analytics/denial-trends", s.handleDenialTrends).Methods(http.MethodGet)
}

// principal pulls the authenticated caller from the request context. The
// auth middleware guarantees it for every /api route.
func (s *Server) principal(r *http.Request) *auth.Principal {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return &auth.Principal{}
	}
	return &p
}

// requireRole guards an endpoint to specific roles.
func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (*auth.Principal, bool) {
	p := s.principal(r)
	for _, role := range roles {
		if p.Role == role {
			return p, true
		}
	}
	s.writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
	return nil, false
}
