package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_LeadRequiresNameAndPhone(t *testing.T) {
	err := Validate(Lead{Name: "   ", Phone: "555"})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "name", verr.Fields[0].Field)
	assert.Equal(t, "is required", verr.Fields[0].Error)
}

func TestValidate_AcceptsCompleteLead(t *testing.T) {
	assert.NoError(t, Validate(Lead{Name: "Asha", Phone: "555-111-2222", Email: "asha@example.com"}))
}

func TestValidate_AttendanceStatus(t *testing.T) {
	err := Validate(AttendanceEntry{StudentID: "s1", Date: "2024-05-01", Status: "late"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "status", verr.Fields[0].Field)
	assert.Contains(t, verr.Error(), "present absent")
}

func TestMerge_KeepsFieldsServerOmits(t *testing.T) {
	base := Lead{ID: "1", Name: "Asha", Phone: "555", Source: "walk-in"}
	merged, err := Merge(base, json.RawMessage(`{"id":"1","phone":"777"}`))
	require.NoError(t, err)
	assert.Equal(t, "Asha", merged.Name)
	assert.Equal(t, "777", merged.Phone)
	assert.Equal(t, "walk-in", merged.Source)
	assert.Equal(t, "555", base.Phone, "base must not be modified")
}

func TestMerge_DoesNotWriteThroughPointers(t *testing.T) {
	age := 20
	created := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	base := Student{ID: "1", Name: "Meera", Phone: "555", Age: &age, CreatedAt: &created}

	merged, err := Merge(base, json.RawMessage(`{"age":30,"createdAt":"2025-02-01T00:00:00Z"}`))
	require.NoError(t, err)
	require.NotNil(t, merged.Age)
	assert.Equal(t, 30, *merged.Age)
	assert.Equal(t, 20, age)
	assert.Equal(t, 20, *base.Age)
	assert.True(t, base.CreatedAt.Equal(time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)))
	assert.NotSame(t, base.Age, merged.Age)
}

func TestMerge_BadPayloadReturnsBase(t *testing.T) {
	base := Lead{ID: "1", Name: "Asha"}
	merged, err := Merge(base, json.RawMessage(`{"name":`))
	assert.Error(t, err)
	assert.Equal(t, base, merged)
}

func TestMatches(t *testing.T) {
	s := Student{Name: "Meera Nair", Batch: "Evening", Phone: "98400"}
	assert.True(t, Matches(s, NormalizeQuery("  MEERA ")))
	assert.True(t, Matches(s, "even"))
	assert.True(t, Matches(s, "984"))
	assert.False(t, Matches(s, "salsa"))
	assert.True(t, Matches(s, ""))
}

func TestDayKey(t *testing.T) {
	assert.Equal(t, "2024-05-01", DayKey("2024-05-01T00:00:00.000Z"))
	assert.Equal(t, "2024-05-01", DayKey("2024-05-01"))
	assert.Equal(t, "2024-04-30", DayKey("2024-05-01T03:00:00+05:30"))
}

func TestPaymentPaidOnFallsBackToCreated(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p := Payment{CreatedAt: &created}
	assert.Equal(t, created, p.PaidOn())
}
