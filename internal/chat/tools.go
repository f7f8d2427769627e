package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/homelend/platform/internal/analytics"
	"github.com/homelend/platform/internal/applications"
	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/decisions"
	"github.com/homelend/platform/internal/documents"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/kb"
	"github.com/homelend/platform/pkg/auth"
)

// UserContext identifies the caller for a tool invocation. It is passed
// explicitly into every tool; tools never read ambient identity.
type UserContext struct {
	UserID    string
	UserRole  auth.Role
	SessionID string
}

func (uc UserContext) principal() *auth.Principal {
	return &auth.Principal{
		UserID: uc.UserID,
		Role:   uc.UserRole,
		Scope:  auth.ScopeForRole(uc.UserRole, uc.UserID),
	}
}

// Tool is one agent-invocable operation. AllowedRoles is checked before Run;
// a role outside the list never reaches the tool body.
type Tool struct {
	Name         string
	Description  string
	Parameters   string // human-readable argument hint for the prompt
	AllowedRoles []auth.Role
	Run          func(ctx context.Context, uc UserContext, args map[string]any) (any, error)
}

func (t *Tool) allows(role auth.Role) bool {
	for _, r := range t.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Registry holds the tool set and the audit sink every invocation writes to.
type Registry struct {
	tools map[string]*Tool
	order []string
	audit *audit.Service
}

// NewRegistry builds the registry over the service layer.
func NewRegistry(
	apps *applications.Service,
	docs *documents.Service,
	decisionsSvc *decisions.Service,
	analyticsSvc *analytics.Service,
	kbSvc *kb.Service,
	auditSvc *audit.Service,
) *Registry {
	r := &Registry{tools: map[string]*Tool{}, audit: auditSvc}

	everyone := []auth.Role{auth.RoleAdmin, auth.RoleCEO, auth.RoleUnderwriter, auth.RoleLoanOfficer, auth.RoleBorrower}

	r.register(&Tool{
		Name:         "get_application_status",
		Description:  "Current stage and pending actions for a mortgage application.",
		Parameters:   `{"application_id": string}`,
		AllowedRoles: everyone,
		Run: func(ctx context.Context, uc UserContext, args map[string]any) (any, error) {
			appID, err := stringArg(args, "application_id")
			if err != nil {
				return nil, err
			}
			return apps.Status(ctx, uc.principal(), appID)
		},
	})

	r.register(&Tool{
		Name:         "check_completeness",
		Description:  "Document completeness report for an application.",
		Parameters:   `{"application_id": string}`,
		AllowedRoles: []auth.Role{auth.RoleAdmin, auth.RoleUnderwriter, auth.RoleLoanOfficer, auth.RoleBorrower},
		Run: func(ctx context.Context, uc UserContext, args map[string]any) (any, error) {
			appID, err := stringArg(args, "application_id")
			if err != nil {
				return nil, err
			}
			return docs.CheckCompleteness(ctx, uc.principal(), appID)
		},
	})

	r.register(&Tool{
		Name:         "uw_preliminary_recommendation",
		Description:  "Preliminary underwriting recommendation from risk ratings and the latest compliance verdict. Advisory only.",
		Parameters:   `{"application_id": string}`,
		AllowedRoles: []auth.Role{auth.RoleAdmin, auth.RoleUnderwriter},
		Run: func(ctx context.Context, uc UserContext, args map[string]any) (any, error) {
			appID, err := stringArg(args, "application_id")
			if err != nil {
				return nil, err
			}
			return r.preliminaryRecommendation(ctx, uc, decisionsSvc, auditSvc, appID)
		},
	})

	r.register(&Tool{
		Name:         "kb_search",
		Description:  "Search the regulatory knowledge base.",
		Parameters:   `{"query": string, "top_k": number (optional)}`,
		AllowedRoles: everyone,
		Run: func(ctx context.Context, uc UserContext, args map[string]any) (any, error) {
			query, err := stringArg(args, "query")
			if err != nil {
				return nil, err
			}
			topK := 0
			if v, ok := args["top_k"].(float64); ok {
				topK = int(v)
			}
			return kbSvc.Search(ctx, query, topK)
		},
	})

	r.register(&Tool{
		Name:         "pipeline_summary",
		Description:  "Pipeline stage counts, pull-through rate, and turn times.",
		Parameters:   `{"days": number (optional, default 30)}`,
		AllowedRoles: []auth.Role{auth.RoleAdmin, auth.RoleCEO, auth.RoleUnderwriter},
		Run: func(ctx context.Context, uc UserContext, args map[string]any) (any, error) {
			days := 0
			if v, ok := args["days"].(float64); ok {
				days = int(v)
			}
			return analyticsSvc.Pipeline(ctx, days)
		},
	})

	r.register(&Tool{
		Name:         "start_application",
		Description:  "Start a mortgage application for the caller, or return the one already in progress.",
		Parameters:   `{}`,
		AllowedRoles: []auth.Role{auth.RoleBorrower, auth.RoleProspect},
		Run: func(ctx context.Context, uc UserContext, args map[string]any) (any, error) {
			p := uc.principal()
			// A prospect starting an application acts under borrower scope.
			if p.Role == auth.RoleProspect {
				p.Role = auth.RoleBorrower
				p.Scope = auth.ScopeForRole(auth.RoleBorrower, p.UserID)
			}
			app, isNew, err := apps.StartApplication(ctx, p)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"application_id": app.ID,
				"stage":          string(app.Stage),
				"is_new":         isNew,
			}, nil
		},
	})

	return r
}

func (r *Registry) register(t *Tool) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// ForRole lists the tools a role may invoke, in registration order.
func (r *Registry) ForRole(role auth.Role) []*Tool {
	var out []*Tool
	for _, name := range r.order {
		if t := r.tools[name]; t.allows(role) {
			out = append(out, t)
		}
	}
	return out
}

// Invoke authorizes and runs a tool, then writes the tool_call audit event.
// The event records the outcome either way; a denied or failed call is still
// part of the session's trail.
func (r *Registry) Invoke(ctx context.Context, uc UserContext, name string, args map[string]any) (any, error) {
	tool, ok := r.tools[name]

	var result any
	var runErr error
	switch {
	case !ok:
		runErr = fmt.Errorf("chat: unknown tool %q", name)
	case !tool.allows(uc.UserRole):
		runErr = fmt.Errorf("chat: tool %q not permitted for role %s", name, uc.UserRole)
	default:
		result, runErr = tool.Run(ctx, uc, args)
	}

	eventData := map[string]any{
		"tool":      name,
		"arguments": args,
	}
	if runErr != nil {
		eventData["error"] = runErr.Error()
	} else if rec, ok := result.(recommendation); ok {
		eventData["recommendation"] = rec.Recommendation
		eventData["risk"] = rec.Risk
		eventData["compliance_status"] = rec.ComplianceStatus
	}

	entry := audit.Entry{
		EventType: domain.EventToolCall,
		UserID:    uc.UserID,
		UserRole:  string(uc.UserRole),
		SessionID: uc.SessionID,
		EventData: eventData,
	}
	if appID, err := stringArg(args, "application_id"); err == nil {
		entry.ApplicationID = appID
	}
	if _, err := r.audit.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("chat: audit tool call: %w", err)
	}
	return result, runErr
}

// recommendation is the uw_preliminary_recommendation result. The decision
// service later reads recommendation back out of the tool_call event to score
// agreement.
type recommendation struct {
	Recommendation   string                 `json:"recommendation"`
	Risk             *decisions.RiskProfile `json:"risk"`
	ComplianceStatus string                 `json:"compliance_status"`
	Notes            []string               `json:"notes"`
}

func (r *Registry) preliminaryRecommendation(ctx context.Context, uc UserContext, decisionsSvc *decisions.Service, auditSvc *audit.Service, appID string) (any, error) {
	profile, err := decisionsSvc.ComputeRisk(ctx, uc.principal(), appID)
	if err != nil {
		return nil, err
	}

	complianceStatus := ""
	events, err := auditSvc.ByApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType != domain.EventComplianceCheck {
			continue
		}
		if s, ok := events[i].EventData["overall_status"].(string); ok {
			complianceStatus = s
		}
		break
	}

	rec := recommendation{Risk: profile, ComplianceStatus: complianceStatus}
	highs := 0
	for _, rating := range []decisions.RiskRating{profile.DTIRating, profile.LTVRating, profile.CreditRating} {
		if rating == decisions.RiskHigh {
			highs++
		}
	}
	switch {
	case complianceStatus == "FAIL":
		rec.Recommendation = "deny"
		rec.Notes = append(rec.Notes, "latest compliance check failed")
	case complianceStatus == "":
		rec.Recommendation = "suspend"
		rec.Notes = append(rec.Notes, "no compliance check on record")
	case highs >= 2:
		rec.Recommendation = "deny"
		rec.Notes = append(rec.Notes, "multiple high risk ratings")
	case highs == 1 || profile.DTIRating == decisions.RiskUnknown:
		rec.Recommendation = "suspend"
		rec.Notes = append(rec.Notes, "risk profile needs underwriter review")
	default:
		rec.Recommendation = "approve"
	}
	return rec, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("chat: argument %q is required", key)
	}
	return strings.TrimSpace(v), nil
}
