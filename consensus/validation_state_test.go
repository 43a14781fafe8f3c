package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationState_DoSAccumulates(t *testing.T) {
	var s ValidationState
	require.True(t, s.IsValid())
	require.NoError(t, s.Err())

	assert.False(t, s.DoS(10, REJECT_INVALID, "first", ""))
	assert.False(t, s.DoS(20, REJECT_MALFORMED, "second", "detail"))
	assert.True(t, s.IsInvalid())
	assert.Equal(t, 30, s.DoSScore())
	assert.Equal(t, REJECT_MALFORMED, s.RejectCode())
	assert.Equal(t, "second", s.RejectReason())
	assert.Equal(t, "detail", s.DebugMessage())

	var rej *RejectError
	require.ErrorAs(t, s.Err(), &rej)
	assert.Equal(t, 30, rej.DoS)
	assert.Contains(t, s.String(), "second")
}

func TestValidationState_ErrorIsSticky(t *testing.T) {
	var s ValidationState
	s.Error("disk")
	s.DoS(100, REJECT_INVALID, "late", "peer detail")
	assert.True(t, s.IsError())
	assert.False(t, s.IsInvalid())
	assert.Equal(t, 0, s.DoSScore())
	assert.Equal(t, "disk", s.RejectReason())
	assert.Equal(t, RejectCode(0), s.RejectCode())
	assert.Empty(t, s.DebugMessage())
}

func TestValidationState_InvalidHasNoScore(t *testing.T) {
	var s ValidationState
	s.Invalid(REJECT_NONSTANDARD, "dust", "")
	assert.True(t, s.IsInvalid())
	assert.Equal(t, 0, s.DoSScore())
	assert.Equal(t, "nonstandard", s.RejectCode().String())
}
