package services

import (
	"testing"
	"time"

	"github.com/plutusgrip/backend/src/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		name      string
		current   string
		frequency model.Frequency
		want      string
	}{
		{"daily", "2024-03-15", model.FrequencyDaily, "2024-03-16"},
		{"weekly", "2024-03-15", model.FrequencyWeekly, "2024-03-22"},
		{"biweekly", "2024-03-15", model.FrequencyBiweekly, "2024-03-29"},
		{"monthly simple", "2024-03-15", model.FrequencyMonthly, "2024-04-15"},
		{"monthly year wrap", "2024-12-15", model.FrequencyMonthly, "2025-01-15"},
		{"monthly clamp to leap february", "2024-01-31", model.FrequencyMonthly, "2024-02-29"},
		{"monthly clamp to february", "2023-01-31", model.FrequencyMonthly, "2023-02-28"},
		{"monthly clamp 31 to 30", "2024-03-31", model.FrequencyMonthly, "2024-04-30"},
		{"quarterly is 91 days", "2024-01-01", model.FrequencyQuarterly, "2024-04-01"},
		{"quarterly mid-year", "2024-06-30", model.FrequencyQuarterly, "2024-09-29"},
		{"yearly", "2023-02-28", model.FrequencyYearly, "2024-02-28"},
		{"yearly clamps leap day", "2024-02-29", model.FrequencyYearly, "2025-02-28"},
		{"unknown frequency treated as daily", "2024-03-15", model.Frequency("sometimes"), "2024-03-16"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			current, err := time.Parse("2006-01-02", c.current)
			require.NoError(t, err)
			got := NextOccurrence(current, c.frequency)
			assert.Equal(t, c.want, got.Format("2006-01-02"))
		})
	}
}

func TestNextOccurrenceDateRejectsBadInput(t *testing.T) {
	_, err := NextOccurrenceDate("15/03/2024", model.FrequencyDaily)
	assert.Error(t, err)
}

func seedTemplate(t *testing.T, svc *RecurringService, template *model.RecurringTransaction) *model.RecurringTransaction {
	t.Helper()
	if template.Currency == "" {
		template.Currency = "BRL"
	}
	require.NoError(t, template.Create(svc.db))
	return template
}

func TestRunDuePassMaterializesDueTemplate(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	seedTemplate(t, svc, &model.RecurringTransaction{
		UserID:            1,
		Description:       "Aluguel",
		Amount:            decimal.RequireFromString("1500.00"),
		Type:              model.TypeExpense,
		Frequency:         model.FrequencyWeekly,
		StartDate:         "2023-12-25",
		NextExecutionDate: "2024-01-01",
		IsActive:          true,
		Notes:             "apartamento",
	})

	created, err := svc.RunDuePass("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	var description, date, notes string
	var amount string
	var isRecurring bool
	var recurringID int64
	err = db.QueryRow(`
		SELECT description, amount, date, notes, is_recurring, recurring_transaction_id
		FROM transactions`).Scan(&description, &amount, &date, &notes, &isRecurring, &recurringID)
	require.NoError(t, err)

	assert.Equal(t, "Aluguel", description)
	assert.Equal(t, "1500.00", amount)
	assert.Equal(t, "2024-01-01", date)
	assert.Equal(t, AutoGeneratedMarker+" apartamento", notes)
	assert.True(t, isRecurring)
	assert.Equal(t, int64(1), recurringID)

	// The schedule advances exactly one period per pass.
	var nextDate string
	err = db.QueryRow(`SELECT next_execution_date FROM recurring_transactions`).Scan(&nextDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", nextDate)
}

func TestRunDuePassIsIdempotentWithinTheDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	seedTemplate(t, svc, &model.RecurringTransaction{
		UserID:            1,
		Description:       "Salário",
		Amount:            decimal.RequireFromString("5000.00"),
		Type:              model.TypeIncome,
		Frequency:         model.FrequencyMonthly,
		StartDate:         "2023-12-01",
		NextExecutionDate: "2024-01-01",
		IsActive:          true,
	})

	created, err := svc.RunDuePass("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// Second pass the same day: next_execution_date moved forward, nothing due.
	created, err = svc.RunDuePass("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRunDuePassDailyTemplateSameDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	seedTemplate(t, svc, &model.RecurringTransaction{
		UserID:            1,
		Description:       "Café",
		Amount:            decimal.RequireFromString("7.50"),
		Type:              model.TypeExpense,
		Frequency:         model.FrequencyDaily,
		StartDate:         "2024-01-01",
		NextExecutionDate: "2024-01-02",
		IsActive:          true,
	})

	// Daily advances to tomorrow, so a same-day rerun materializes nothing.
	created, err := svc.RunDuePass("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = svc.RunDuePass("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var nextDate string
	require.NoError(t, db.QueryRow(`SELECT next_execution_date FROM recurring_transactions`).Scan(&nextDate))
	assert.Equal(t, "2024-01-03", nextDate)
}

func TestRunDuePassCatchesUpOnePeriodAtATime(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	// Due date three weeks in the past.
	seedTemplate(t, svc, &model.RecurringTransaction{
		UserID:            1,
		Description:       "Academia",
		Amount:            decimal.RequireFromString("90.00"),
		Type:              model.TypeExpense,
		Frequency:         model.FrequencyWeekly,
		StartDate:         "2023-12-25",
		NextExecutionDate: "2024-01-01",
		IsActive:          true,
	})

	created, err := svc.RunDuePass("2024-01-22")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// Advanced from the stored date, not from today, so the missed
	// occurrences surface on subsequent passes.
	var nextDate string
	require.NoError(t, db.QueryRow(`SELECT next_execution_date FROM recurring_transactions`).Scan(&nextDate))
	assert.Equal(t, "2024-01-08", nextDate)

	created, err = svc.RunDuePass("2024-01-22")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestRunDuePassDeactivatesExpiredTemplate(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	seedTemplate(t, svc, &model.RecurringTransaction{
		UserID:            1,
		Description:       "Assinatura encerrada",
		Amount:            decimal.RequireFromString("29.90"),
		Type:              model.TypeExpense,
		Frequency:         model.FrequencyMonthly,
		StartDate:         "2023-06-01",
		EndDate:           "2023-12-31",
		NextExecutionDate: "2024-01-01",
		IsActive:          true,
	})

	created, err := svc.RunDuePass("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 0, count)

	var isActive bool
	require.NoError(t, db.QueryRow(`SELECT is_active FROM recurring_transactions`).Scan(&isActive))
	assert.False(t, isActive)
}

func TestRunDuePassSkipsInactiveTemplates(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	seedTemplate(t, svc, &model.RecurringTransaction{
		UserID:            1,
		Description:       "Pausado",
		Amount:            decimal.RequireFromString("10.00"),
		Type:              model.TypeExpense,
		Frequency:         model.FrequencyDaily,
		StartDate:         "2023-12-01",
		NextExecutionDate: "2024-01-01",
		IsActive:          false,
	})

	created, err := svc.RunDuePass("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestRunDuePassRejectsMalformedDate(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	_, err := svc.RunDuePass("01-01-2024")
	assert.Error(t, err)
}

func TestRunDuePassNotesMarkerWithoutTemplateNotes(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecurringService(db)

	seedTemplate(t, svc, &model.RecurringTransaction{
		UserID:            1,
		Description:       "Internet",
		Amount:            decimal.RequireFromString("99.90"),
		Type:              model.TypeExpense,
		Frequency:         model.FrequencyMonthly,
		StartDate:         "2023-12-10",
		NextExecutionDate: "2024-01-10",
		IsActive:          true,
	})

	_, err := svc.RunDuePass("2024-01-10")
	require.NoError(t, err)

	var notes string
	require.NoError(t, db.QueryRow(`SELECT notes FROM transactions`).Scan(&notes))
	assert.Equal(t, AutoGeneratedMarker, notes)
}

func TestInitialNextExecution(t *testing.T) {
	next, err := InitialNextExecution("2024-01-31", model.FrequencyMonthly)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", next)
}
