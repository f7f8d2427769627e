package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role is the single domain role resolved from the identity provider's realm
// roles. When a token carries several realm roles the most privileged wins.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCEO         Role = "ceo"
	RoleUnderwriter Role = "underwriter"
	RoleLoanOfficer Role = "loan_officer"
	RoleBorrower    Role = "borrower"
	RoleProspect    Role = "prospect"
)

// rolePrecedence orders realm roles from most to least privileged.
var rolePrecedence = []Role{
	RoleAdmin,
	RoleCEO,
	RoleUnderwriter,
	RoleLoanOfficer,
	RoleBorrower,
	RoleProspect,
}

// Claims are the JWT claims the platform requires from the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	RealmAccess RealmAccess `json:"realm_access"`
}

// RealmAccess carries the realm role list issued by the identity provider.
type RealmAccess struct {
	Roles []string `json:"roles"`
}

// ResolveRole maps the realm roles to a single domain role, preferring the
// most privileged. The second return value is false when no realm role maps
// to a domain role.
func ResolveRole(realmRoles []string) (Role, bool) {
	have := make(map[Role]struct{}, len(realmRoles))
	for _, r := range realmRoles {
		have[Role(r)] = struct{}{}
	}
	for _, r := range rolePrecedence {
		if _, ok := have[r]; ok {
			return r, true
		}
	}
	return "", false
}

// DataScope carries the query-predicate inputs resolved from a principal's
// role. Every application read path composes exactly these fields into SQL.
type DataScope struct {
	// OwnDataOnly restricts reads to applications the principal appears on
	// as a borrower. UserID identifies the principal's borrower subject.
	OwnDataOnly bool
	UserID      string
	// AssignedTo restricts reads to applications assigned to this LO.
	AssignedTo string
	// FullPipeline grants unrestricted application reads.
	FullPipeline bool
	// PIIMask masks SSN and DOB at the response boundary.
	PIIMask bool
	// DocumentMetadataOnly strips file paths and blocks document content.
	DocumentMetadataOnly bool
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   Role
	Email  string
	Name   string
	Scope  DataScope
}

// ScopeForRole builds the data scope a role is entitled to. The prospect role
// produces the zero scope, which matches no applications.
func ScopeForRole(role Role, userID string) DataScope {
	switch role {
	case RoleBorrower:
		return DataScope{OwnDataOnly: true, UserID: userID}
	case RoleLoanOfficer:
		return DataScope{AssignedTo: userID}
	case RoleUnderwriter, RoleAdmin:
		return DataScope{FullPipeline: true}
	case RoleCEO:
		return DataScope{FullPipeline: true, PIIMask: true, DocumentMetadataOnly: true}
	default:
		return DataScope{}
	}
}

// NewPrincipal resolves a Principal from verified claims.
func NewPrincipal(claims *Claims) (Principal, bool) {
	role, ok := ResolveRole(claims.RealmAccess.Roles)
	if !ok {
		return Principal{}, false
	}
	sub := claims.Subject
	return Principal{
		UserID: sub,
		Role:   role,
		Email:  claims.Email,
		Name:   claims.Name,
		Scope:  ScopeForRole(role, sub),
	}, true
}
