package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/pkg/auth"
)

func TestResolveRole_MostPrivilegedWins(t *testing.T) {
	role, ok := auth.ResolveRole([]string{"borrower", "underwriter", "offline_access"})
	require.True(t, ok)
	assert.Equal(t, auth.RoleUnderwriter, role)

	role, ok = auth.ResolveRole([]string{"admin", "ceo"})
	require.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, role)
}

func TestResolveRole_NoRecognizedRole(t *testing.T) {
	_, ok := auth.ResolveRole([]string{"offline_access", "uma_authorization"})
	assert.False(t, ok)
	_, ok = auth.ResolveRole(nil)
	assert.False(t, ok)
}

func TestScopeForRole(t *testing.T) {
	borrower := auth.ScopeForRole(auth.RoleBorrower, "user-1")
	assert.True(t, borrower.OwnDataOnly)
	assert.Equal(t, "user-1", borrower.UserID)
	assert.False(t, borrower.FullPipeline)

	lo := auth.ScopeForRole(auth.RoleLoanOfficer, "lo-1")
	assert.Equal(t, "lo-1", lo.AssignedTo)
	assert.False(t, lo.FullPipeline)

	uw := auth.ScopeForRole(auth.RoleUnderwriter, "uw-1")
	assert.True(t, uw.FullPipeline)
	assert.False(t, uw.PIIMask)

	ceo := auth.ScopeForRole(auth.RoleCEO, "ceo-1")
	assert.True(t, ceo.FullPipeline)
	assert.True(t, ceo.PIIMask)
	assert.True(t, ceo.DocumentMetadataOnly)

	prospect := auth.ScopeForRole(auth.RoleProspect, "p-1")
	assert.Equal(t, auth.DataScope{}, prospect)
}
