package audit_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
)

func ptr(s string) *string { return &s }

func sampleEvent() *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:            42,
		Timestamp:     time.Date(2026, time.March, 5, 14, 30, 0, 123456789, time.UTC),
		PrevHash:      domain.GenesisHash,
		EventType:     domain.EventStageTransition,
		UserID:        ptr("user-1"),
		UserRole:      ptr("underwriter"),
		ApplicationID: ptr("app-1"),
		SessionID:     ptr("sess-1"),
		EventData:     map[string]any{"from_stage": "processing", "to_stage": "underwriting"},
	}
}

func TestCanonicalize_Shape(t *testing.T) {
	canonical, err := audit.Canonicalize(sampleEvent())
	require.NoError(t, err)

	parts := strings.Split(canonical, "|")
	require.Len(t, parts, 8)
	assert.Equal(t, "42", parts[0])
	assert.Equal(t, "2026-03-05T14:30:00.123456789Z", parts[1])
	assert.Equal(t, "stage_transition", parts[2])
	assert.Equal(t, "user-1", parts[3])
	assert.Equal(t, "underwriter", parts[4])
	assert.Equal(t, "app-1", parts[5])
	assert.Equal(t, "sess-1", parts[6])
	assert.JSONEq(t, `{"from_stage":"processing","to_stage":"underwriting"}`, parts[7])
}

func TestCanonicalize_AbsentFieldsSerializeEmpty(t *testing.T) {
	e := &domain.AuditEvent{ID: 1, Timestamp: time.Unix(0, 0).UTC(), EventType: "seed"}

	canonical, err := audit.Canonicalize(e)
	require.NoError(t, err)

	parts := strings.Split(canonical, "|")
	require.Len(t, parts, 8)
	assert.Empty(t, parts[3])
	assert.Empty(t, parts[4])
	assert.Empty(t, parts[5])
	assert.Empty(t, parts[6])
	assert.Equal(t, "{}", parts[7])
}

func TestCanonicalize_KeyOrderIndependent(t *testing.T) {
	a := sampleEvent()
	a.EventData = map[string]any{"b": 2, "a": 1, "c": map[string]any{"y": true, "x": false}}
	b := sampleEvent()
	b.EventData = map[string]any{"c": map[string]any{"x": false, "y": true}, "a": 1, "b": 2}

	ca, err := audit.Canonicalize(a)
	require.NoError(t, err)
	cb, err := audit.Canonicalize(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestHashEvent_Deterministic(t *testing.T) {
	h1, err := audit.HashEvent(sampleEvent())
	require.NoError(t, err)
	h2, err := audit.HashEvent(sampleEvent())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // SHA-256 hex
}

func TestHashEvent_SensitiveToEveryField(t *testing.T) {
	base, err := audit.HashEvent(sampleEvent())
	require.NoError(t, err)

	mutations := map[string]func(*domain.AuditEvent){
		"id":         func(e *domain.AuditEvent) { e.ID = 43 },
		"timestamp":  func(e *domain.AuditEvent) { e.Timestamp = e.Timestamp.Add(time.Nanosecond) },
		"event type": func(e *domain.AuditEvent) { e.EventType = "decision" },
		"user":       func(e *domain.AuditEvent) { e.UserID = ptr("user-2") },
		"data":       func(e *domain.AuditEvent) { e.EventData["to_stage"] = "denied" },
	}
	for name, mutate := range mutations {
		e := sampleEvent()
		mutate(e)
		h, err := audit.HashEvent(e)
		require.NoError(t, err)
		assert.NotEqual(t, base, h, "mutation %q should change the hash", name)
	}
}

// chainOf builds n linked events with ids 1..n and correct prev_hash links.
func chainOf(t *testing.T, n int) []domain.AuditEvent {
	t.Helper()
	events := make([]domain.AuditEvent, n)
	prevHash := domain.GenesisHash
	for i := range events {
		e := sampleEvent()
		e.ID = int64(i + 1)
		e.Timestamp = e.Timestamp.Add(time.Duration(i) * time.Second)
		e.PrevHash = prevHash
		events[i] = *e

		h, err := audit.HashEvent(e)
		require.NoError(t, err)
		prevHash = h
	}
	return events
}

func TestVerifyEvents_Intact(t *testing.T) {
	result, err := audit.VerifyEvents(chainOf(t, 4))
	require.NoError(t, err)

	assert.Equal(t, domain.ChainOK, result.Status)
	assert.Equal(t, 4, result.EventsChecked)
	assert.Nil(t, result.FirstBreakID)
}

func TestVerifyEvents_Empty(t *testing.T) {
	result, err := audit.VerifyEvents(nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ChainOK, result.Status)
	assert.Equal(t, 0, result.EventsChecked)
}

func TestVerifyEvents_RewrittenMiddle(t *testing.T) {
	events := chainOf(t, 4)
	// Rewriting event 2's payload invalidates event 3's back-link.
	events[1].EventData = map[string]any{"to_stage": "denied"}

	result, err := audit.VerifyEvents(events)
	require.NoError(t, err)

	assert.Equal(t, domain.ChainTampered, result.Status)
	require.NotNil(t, result.FirstBreakID)
	assert.Equal(t, int64(3), *result.FirstBreakID)
	assert.Equal(t, 2, result.EventsChecked)
}

func TestVerifyEvents_BrokenGenesis(t *testing.T) {
	events := chainOf(t, 2)
	events[0].PrevHash = "0000"

	result, err := audit.VerifyEvents(events)
	require.NoError(t, err)

	assert.Equal(t, domain.ChainTampered, result.Status)
	require.NotNil(t, result.FirstBreakID)
	assert.Equal(t, int64(1), *result.FirstBreakID)
	assert.Equal(t, 0, result.EventsChecked)
}

func TestHashEvent_ChainLink(t *testing.T) {
	first := sampleEvent()
	firstHash, err := audit.HashEvent(first)
	require.NoError(t, err)

	second := sampleEvent()
	second.ID = 43
	second.PrevHash = firstHash

	// The link holds regardless of the second event's own contents.
	secondHash, err := audit.HashEvent(second)
	require.NoError(t, err)
	assert.NotEqual(t, firstHash, secondHash)
	assert.Equal(t, firstHash, second.PrevHash)
}
