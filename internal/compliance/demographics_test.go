package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/internal/domain"
)

func strPtr(s string) *string { return &s }

func methodOf(m domain.CollectionMethod) *domain.CollectionMethod { return &m }

func TestResolveField_FirstValueSticks(t *testing.T) {
	var stored *string
	var storedMethod *domain.CollectionMethod
	var conflicts []domain.DemographicConflict

	resolveField("race", "asian", domain.MethodVisualObservation, &stored, &storedMethod, &conflicts)

	require.NotNil(t, stored)
	assert.Equal(t, "asian", *stored)
	assert.Equal(t, domain.MethodVisualObservation, *storedMethod)
	assert.Empty(t, conflicts)
}

func TestResolveField_HigherPrecedenceOverwrites(t *testing.T) {
	stored := strPtr("asian")
	storedMethod := methodOf(domain.MethodVisualObservation)
	var conflicts []domain.DemographicConflict

	resolveField("race", "white", domain.MethodSelfReported, &stored, &storedMethod, &conflicts)

	assert.Equal(t, "white", *stored)
	assert.Equal(t, domain.MethodSelfReported, *storedMethod)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "overwritten", conflicts[0].Resolution)
	assert.Equal(t, "race", conflicts[0].Field)
}

func TestResolveField_LowerPrecedenceKeepsExisting(t *testing.T) {
	stored := strPtr("hispanic")
	storedMethod := methodOf(domain.MethodSelfReported)
	var conflicts []domain.DemographicConflict

	resolveField("ethnicity", "not_hispanic", domain.MethodDocumentExtraction, &stored, &storedMethod, &conflicts)

	assert.Equal(t, "hispanic", *stored)
	assert.Equal(t, domain.MethodSelfReported, *storedMethod)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "kept_existing", conflicts[0].Resolution)
}

func TestResolveField_EqualPrecedenceKeepsExisting(t *testing.T) {
	stored := strPtr("female")
	storedMethod := methodOf(domain.MethodDocumentExtraction)
	var conflicts []domain.DemographicConflict

	resolveField("sex", "male", domain.MethodDocumentExtraction, &stored, &storedMethod, &conflicts)

	assert.Equal(t, "female", *stored)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "kept_existing", conflicts[0].Resolution)
}

func TestResolveField_IdenticalValueNoConflict(t *testing.T) {
	stored := strPtr("asian")
	storedMethod := methodOf(domain.MethodVisualObservation)
	var conflicts []domain.DemographicConflict

	// Same value from a stronger source: method upgrades silently.
	resolveField("race", "asian", domain.MethodSelfReported, &stored, &storedMethod, &conflicts)

	assert.Equal(t, "asian", *stored)
	assert.Equal(t, domain.MethodSelfReported, *storedMethod)
	assert.Empty(t, conflicts)

	// Same value from a weaker source: method stays.
	resolveField("race", "asian", domain.MethodVisualObservation, &stored, &storedMethod, &conflicts)
	assert.Equal(t, domain.MethodSelfReported, *storedMethod)
	assert.Empty(t, conflicts)
}

func TestCollectionMethodPrecedence(t *testing.T) {
	assert.Greater(t, domain.MethodSelfReported.Precedence(), domain.MethodDocumentExtraction.Precedence())
	assert.Greater(t, domain.MethodDocumentExtraction.Precedence(), domain.MethodVisualObservation.Precedence())
	assert.Greater(t, domain.MethodVisualObservation.Precedence(), domain.MethodNotProvided.Precedence())
	assert.Less(t, domain.CollectionMethod("guess").Precedence(), domain.MethodNotProvided.Precedence())
}
