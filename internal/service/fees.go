package service

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	firstGigMaxCompleted  = 1
	powerUserMinCompleted = 5

	recruiterFeeStandard  = 10
	recruiterFeePowerUser = 8
	studentFeeStandard    = 5
	studentFeePowerUser   = 3
)

// FeeBreakdown splits a gross gig payment into platform fees.
type FeeBreakdown struct {
	GrossAmount         decimal.Decimal
	RecruiterFeePercent int
	StudentFeePercent   int
	RecruiterFeeAmount  decimal.Decimal
	StudentFeeAmount    decimal.Decimal
	NetToStudent        decimal.Decimal
	IsFirstGig          bool
	IsPowerUser         bool
}

// ComputeFees derives fee tiers from the recruiter's completed gig count.
// Amounts are rounded to cents, half away from zero. The recruiter fee is
// billed separately and does not reduce the student's net.
func ComputeFees(gross decimal.Decimal, recruiterCompletedGigsCount int) FeeBreakdown {
	isFirstGig := recruiterCompletedGigsCount <= firstGigMaxCompleted
	isPowerUser := recruiterCompletedGigsCount >= powerUserMinCompleted

	recruiterPct := recruiterFeeStandard
	switch {
	case isFirstGig:
		recruiterPct = 0
	case isPowerUser:
		recruiterPct = recruiterFeePowerUser
	}
	studentPct := studentFeeStandard
	if isPowerUser {
		studentPct = studentFeePowerUser
	}

	recruiterFee := percentOf(gross, recruiterPct)
	studentFee := percentOf(gross, studentPct)

	return FeeBreakdown{
		GrossAmount:         gross.Round(2),
		RecruiterFeePercent: recruiterPct,
		StudentFeePercent:   studentPct,
		RecruiterFeeAmount:  recruiterFee,
		StudentFeeAmount:    studentFee,
		NetToStudent:        gross.Sub(studentFee).Round(2),
		IsFirstGig:          isFirstGig,
		IsPowerUser:         isPowerUser,
	}
}

func percentOf(amount decimal.Decimal, pct int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
}

// MarshalJSON renders money with exactly two decimals.
func (f FeeBreakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		GrossAmount         string `json:"grossAmount"`
		RecruiterFeePercent int    `json:"recruiterFeePercent"`
		StudentFeePercent   int    `json:"studentFeePercent"`
		RecruiterFeeAmount  string `json:"recruiterFeeAmount"`
		StudentFeeAmount    string `json:"studentFeeAmount"`
		NetToStudent        string `json:"netToStudent"`
		IsFirstGig          bool   `json:"isFirstGig"`
		IsPowerUser         bool   `json:"isPowerUser"`
	}{
		GrossAmount:         f.GrossAmount.StringFixed(2),
		RecruiterFeePercent: f.RecruiterFeePercent,
		StudentFeePercent:   f.StudentFeePercent,
		RecruiterFeeAmount:  f.RecruiterFeeAmount.StringFixed(2),
		StudentFeeAmount:    f.StudentFeeAmount.StringFixed(2),
		NetToStudent:        f.NetToStudent.StringFixed(2),
		IsFirstGig:          f.IsFirstGig,
		IsPowerUser:         f.IsPowerUser,
	})
}
