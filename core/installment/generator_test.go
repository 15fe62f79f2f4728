package installment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
)

func TestGenerate(t *testing.T) {
	value := decimal.RequireFromString("150.00")

	t.Run("monthly schedule", func(t *testing.T) {
		drafts := Generate(Schedule{
			PlanID:            "p1",
			StudentID:         "s1",
			TotalInstallments: 3,
			InstallmentValue:  value,
			StartDate:         core.Date(2024, time.January, 15),
		}, nil)

		require.Len(t, drafts, 3)
		wantDue := []time.Time{
			core.Date(2024, time.January, 15),
			core.Date(2024, time.February, 15),
			core.Date(2024, time.March, 15),
		}
		for i, d := range drafts {
			assert.Equal(t, i+1, d.Number)
			assert.Equal(t, wantDue[i], d.DueDate)
			assert.True(t, value.Equal(d.Value))
			assert.Equal(t, StatusOpen, d.Status)
			assert.False(t, d.PaymentDate.Valid)
			assert.Equal(t, "p1", d.PlanID)
			assert.Equal(t, "s1", d.StudentID)
		}
	})

	t.Run("end of month clamping", func(t *testing.T) {
		drafts := Generate(Schedule{TotalInstallments: 4, InstallmentValue: value, StartDate: core.Date(2024, time.January, 31)}, nil)
		require.Len(t, drafts, 4)
		assert.Equal(t, core.Date(2024, time.January, 31), drafts[0].DueDate)
		assert.Equal(t, core.Date(2024, time.February, 29), drafts[1].DueDate) // leap year
		assert.Equal(t, core.Date(2024, time.March, 31), drafts[2].DueDate)
		assert.Equal(t, core.Date(2024, time.April, 30), drafts[3].DueDate)
	})

	t.Run("paid installments preserved by due date", func(t *testing.T) {
		paidOn := core.Date(2024, time.January, 10)
		previous := []Installment{
			{DueDate: core.Date(2024, time.January, 15), Status: StatusPaid, PaymentDate: null.TimeFrom(paidOn)},
			{DueDate: core.Date(2024, time.February, 15), Status: StatusOpen},
			{DueDate: core.Date(2024, time.March, 1), Status: StatusPaid, PaymentDate: null.TimeFrom(paidOn)}, // no match
		}
		drafts := Generate(Schedule{TotalInstallments: 3, InstallmentValue: value, StartDate: core.Date(2024, time.January, 15)}, previous)

		require.Len(t, drafts, 3)
		assert.Equal(t, StatusPaid, drafts[0].Status)
		assert.Equal(t, null.TimeFrom(paidOn), drafts[0].PaymentDate)
		assert.Equal(t, StatusOpen, drafts[1].Status)
		assert.Equal(t, StatusOpen, drafts[2].Status)
	})

	t.Run("paid without payment date falls back to due date", func(t *testing.T) {
		due := core.Date(2024, time.May, 5)
		drafts := Generate(
			Schedule{TotalInstallments: 1, InstallmentValue: value, StartDate: due},
			[]Installment{{DueDate: due, Status: StatusPaid}},
		)
		require.Len(t, drafts, 1)
		assert.Equal(t, null.TimeFrom(due), drafts[0].PaymentDate)
	})

	t.Run("no installments", func(t *testing.T) {
		assert.Empty(t, Generate(Schedule{TotalInstallments: 0, StartDate: core.Date(2024, time.May, 5)}, nil))
	})
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		inst Installment
		want Status
	}{
		{name: "paid stays paid", inst: Installment{Status: StatusPaid, DueDate: core.Date(2024, time.January, 1)}, want: StatusPaid},
		{name: "due yesterday", inst: Installment{Status: StatusOpen, DueDate: core.Date(2024, time.March, 9)}, want: StatusOverdue},
		{name: "due today", inst: Installment{Status: StatusOpen, DueDate: core.Date(2024, time.March, 10)}, want: StatusOpen},
		{name: "due tomorrow", inst: Installment{Status: StatusOpen, DueDate: core.Date(2024, time.March, 11)}, want: StatusOpen},
		{name: "stale overdue back to open", inst: Installment{Status: StatusOverdue, DueDate: core.Date(2024, time.April, 1)}, want: StatusOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.inst, now))
		})
	}
}

func TestQueryFilter_IsScoped(t *testing.T) {
	assert.False(t, QueryFilter{Statuses: UnpaidStatuses}.IsScoped())
	assert.True(t, QueryFilter{IDs: []string{"x"}}.IsScoped())
	assert.True(t, QueryFilter{PlanID: "p"}.IsScoped())
	assert.True(t, QueryFilter{StudentID: "s"}.IsScoped())
}

func TestUpdatePayment_Validate(t *testing.T) {
	up := UpdatePayment{Paid: true, PaymentDate: " 2024-02-30 "}
	assert.Error(t, up.Validate())

	up = UpdatePayment{Paid: true, PaymentDate: " 2024-02-28 "}
	assert.NoError(t, up.Validate())
	assert.Equal(t, "2024-02-28", up.PaymentDate)
}

func TestCheckPayment(t *testing.T) {
	paidOn := null.TimeFrom(core.Date(2024, time.February, 1))
	tests := []struct {
		name        string
		status      Status
		paymentDate null.Time
		wantErr     error
	}{
		{"open", StatusOpen, null.Time{}, nil},
		{"overdue", StatusOverdue, null.Time{}, nil},
		{"paid", StatusPaid, paidOn, nil},
		{"unknown status", Status("cancelada"), null.Time{}, ErrInvalidStatus},
		{"empty status", Status(""), null.Time{}, ErrInvalidStatus},
		{"paid without date", StatusPaid, null.Time{}, ErrPaymentDate},
		{"open with date", StatusOpen, paidOn, ErrPaymentDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, CheckPayment(tt.status, tt.paymentDate))
		})
	}
}

func TestInstallment_MarshalJSON(t *testing.T) {
	inst := Installment{ID: "i1", Number: 2, Value: decimal.NewFromInt(100), Status: StatusOpen}
	data, err := json.Marshal(inst)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":"100.00"`)
	assert.Contains(t, string(data), `"installment_number":2`)

	var back Installment
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, inst.Value.Equal(back.Value))
	assert.Equal(t, inst.Status, back.Status)
}
