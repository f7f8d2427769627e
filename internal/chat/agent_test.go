package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/pkg/auth"
)

func TestParseToolDirective(t *testing.T) {
	d, ok := parseToolDirective(`{"tool":"kb_search","arguments":{"query":"TRID timing"}}`)
	require.True(t, ok)
	assert.Equal(t, "kb_search", d.Tool)
	assert.Equal(t, "TRID timing", d.Arguments["query"])
}

func TestParseToolDirective_CodeFence(t *testing.T) {
	d, ok := parseToolDirective("```json\n{\"tool\":\"pipeline_summary\",\"arguments\":{}}\n```")
	require.True(t, ok)
	assert.Equal(t, "pipeline_summary", d.Tool)
	assert.NotNil(t, d.Arguments)
}

func TestParseToolDirective_PlainText(t *testing.T) {
	_, ok := parseToolDirective("Your application is in underwriting.")
	assert.False(t, ok)

	// JSON without a tool name is an answer, not a directive.
	_, ok = parseToolDirective(`{"stage":"underwriting"}`)
	assert.False(t, ok)
}

func TestParseToolDirective_MissingArguments(t *testing.T) {
	d, ok := parseToolDirective(`{"tool":"start_application"}`)
	require.True(t, ok)
	assert.NotNil(t, d.Arguments)
	assert.Empty(t, d.Arguments)
}

func TestChunkText(t *testing.T) {
	chunks := chunkText(strings.Repeat("a", 25), 10)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), "aaaaa"}, chunks)
	assert.Nil(t, chunkText("", 10))
}

func TestToolAllows(t *testing.T) {
	tool := &Tool{AllowedRoles: []auth.Role{auth.RoleUnderwriter, auth.RoleAdmin}}
	assert.True(t, tool.allows(auth.RoleUnderwriter))
	assert.False(t, tool.allows(auth.RoleBorrower))
}

func TestRegistryForRole(t *testing.T) {
	r := &Registry{tools: map[string]*Tool{}}
	r.register(&Tool{Name: "everyone", AllowedRoles: []auth.Role{auth.RoleBorrower, auth.RoleUnderwriter}})
	r.register(&Tool{Name: "uw_only", AllowedRoles: []auth.Role{auth.RoleUnderwriter}})

	names := func(tools []*Tool) []string {
		var out []string
		for _, t := range tools {
			out = append(out, t.Name)
		}
		return out
	}

	assert.Equal(t, []string{"everyone"}, names(r.ForRole(auth.RoleBorrower)))
	assert.Equal(t, []string{"everyone", "uw_only"}, names(r.ForRole(auth.RoleUnderwriter)))
	assert.Nil(t, r.ForRole(auth.RoleProspect))
}

func TestUserContextPrincipal(t *testing.T) {
	uc := UserContext{UserID: "u-1", UserRole: auth.RoleBorrower, SessionID: "s-1"}
	p := uc.principal()
	assert.Equal(t, "u-1", p.UserID)
	assert.True(t, p.Scope.OwnDataOnly)
	assert.Equal(t, "u-1", p.Scope.UserID)
}
