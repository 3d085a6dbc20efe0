package service

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFeesTiers(t *testing.T) {
	gross := decimal.NewFromInt(2000)
	tests := []struct {
		count        int
		recruiterPct int
		studentPct   int
		first, power bool
	}{
		{count: 0, recruiterPct: 0, studentPct: 5, first: true},
		{count: 1, recruiterPct: 0, studentPct: 5, first: true},
		{count: 2, recruiterPct: 10, studentPct: 5},
		{count: 3, recruiterPct: 10, studentPct: 5},
		{count: 4, recruiterPct: 10, studentPct: 5},
		{count: 5, recruiterPct: 8, studentPct: 3, power: true},
		{count: 42, recruiterPct: 8, studentPct: 3, power: true},
	}
	for _, tt := range tests {
		got := ComputeFees(gross, tt.count)
		assert.Equal(t, tt.recruiterPct, got.RecruiterFeePercent, "count=%d", tt.count)
		assert.Equal(t, tt.studentPct, got.StudentFeePercent, "count=%d", tt.count)
		assert.Equal(t, tt.first, got.IsFirstGig, "count=%d", tt.count)
		assert.Equal(t, tt.power, got.IsPowerUser, "count=%d", tt.count)
	}
}

func TestComputeFeesFirstGigScenario(t *testing.T) {
	got := ComputeFees(decimal.NewFromInt(10000), 1)

	assert.True(t, got.IsFirstGig)
	assert.False(t, got.IsPowerUser)
	assert.Equal(t, "0.00", got.RecruiterFeeAmount.StringFixed(2))
	assert.Equal(t, "500.00", got.StudentFeeAmount.StringFixed(2))
	assert.Equal(t, "9500.00", got.NetToStudent.StringFixed(2))
}

func TestComputeFeesPowerUserScenario(t *testing.T) {
	got := ComputeFees(decimal.NewFromInt(10000), 6)

	assert.True(t, got.IsPowerUser)
	assert.Equal(t, "800.00", got.RecruiterFeeAmount.StringFixed(2))
	assert.Equal(t, "300.00", got.StudentFeeAmount.StringFixed(2))
	assert.Equal(t, "9700.00", got.NetToStudent.StringFixed(2))
}

func TestComputeFeesRoundsToCents(t *testing.T) {
	// 5% of 10.10 is 0.505, which rounds half away from zero.
	got := ComputeFees(decimal.RequireFromString("10.10"), 3)
	assert.Equal(t, "0.51", got.StudentFeeAmount.StringFixed(2))
	assert.Equal(t, "1.01", got.RecruiterFeeAmount.StringFixed(2))
	assert.Equal(t, "9.59", got.NetToStudent.StringFixed(2))
}

func TestFeeBreakdownJSONUsesTwoDecimals(t *testing.T) {
	raw, err := json.Marshal(ComputeFees(decimal.NewFromInt(10000), 6))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "800.00", got["recruiterFeeAmount"])
	assert.Equal(t, "9700.00", got["netToStudent"])
	assert.Equal(t, float64(8), got["recruiterFeePercent"])
	assert.Equal(t, true, got["isPowerUser"])
}
