package services

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
)

// AutoGeneratedMarker prefixes the notes of every transaction materialized
// from a recurring template. Kept byte-for-byte stable: clients filter on it.
const AutoGeneratedMarker = "[Automática]"

const dateLayout = "2006-01-02"

// RecurringService owns recurrence scheduling: computing next occurrence
// dates and the periodic due pass that turns due templates into concrete
// transactions.
type RecurringService struct {
	db *sql.DB

	// Serializes due passes. The scheduler is expected not to overlap
	// invocations, but a manual admin trigger can race the ticker.
	passMu sync.Mutex
}

func NewRecurringService(db *sql.DB) *RecurringService {
	return &RecurringService{db: db}
}

// NextOccurrence advances a date by one recurrence period.
//
// The rules mirror what history was generated with, so the quirks are
// deliberate: quarterly is a fixed 91-day offset rather than calendar
// quarters, and an unrecognized frequency falls back to the daily rule
// instead of failing.
func NextOccurrence(current time.Time, frequency model.Frequency) time.Time {
	switch frequency {
	case model.FrequencyWeekly:
		return current.AddDate(0, 0, 7)
	case model.FrequencyBiweekly:
		return current.AddDate(0, 0, 14)
	case model.FrequencyMonthly:
		// Same day-of-month one month later, wrapping December into the
		// next year and clamping to the target month's length
		// (Jan 31 -> Feb 28/29).
		year, month, day := current.Date()
		month++
		if month > time.December {
			month = time.January
			year++
		}
		if last := lastDayOfMonth(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day, 0, 0, 0, 0, current.Location())
	case model.FrequencyQuarterly:
		// Approximately three months. Not calendar-exact on purpose.
		return current.AddDate(0, 0, 91)
	case model.FrequencyYearly:
		// Same month/day next year, clamping Feb 29 to Feb 28.
		year, month, day := current.Date()
		year++
		if last := lastDayOfMonth(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day, 0, 0, 0, 0, current.Location())
	case model.FrequencyDaily:
		return current.AddDate(0, 0, 1)
	default:
		// Fail-safe: unknown frequencies advance daily.
		return current.AddDate(0, 0, 1)
	}
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day zero of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextOccurrenceDate is NextOccurrence over YYYY-MM-DD strings, the form
// dates take in storage.
func NextOccurrenceDate(current string, frequency model.Frequency) (string, error) {
	d, err := time.Parse(dateLayout, current)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", current, err)
	}
	return NextOccurrence(d, frequency).Format(dateLayout), nil
}

// RunDuePass materializes one transaction for every active template due on
// or before today and advances each template by exactly one period. The
// whole pass runs in a single database transaction: either every due
// template is advanced and materialized, or none are, so a failed pass is
// safe to retry.
//
// A template that fell many periods behind advances only one period per
// pass; the due query re-selects it on the next invocation until it catches
// up. That is intended behavior, not a defect: a pass never fabricates a
// backlog of transactions in one go.
func (s *RecurringService) RunDuePass(today string) (int, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	if _, err := time.Parse(dateLayout, today); err != nil {
		return 0, fmt.Errorf("invalid pass date %q: %w", today, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin due pass: %w", err)
	}
	defer tx.Rollback()

	due, err := model.ListRecurringDue(tx, today)
	if err != nil {
		return 0, fmt.Errorf("query due templates: %w", err)
	}

	created := 0
	for _, template := range due {
		// Past its end date: deactivate and skip, no transaction for
		// this occurrence.
		if template.EndDate != "" && today > template.EndDate {
			if err := deactivateTemplate(tx, template.ID); err != nil {
				return 0, fmt.Errorf("deactivate template %d: %w", template.ID, err)
			}
			logger.L.Info("Recurring template expired, deactivated",
				"templateID", template.ID, "userID", template.UserID, "endDate", template.EndDate)
			continue
		}

		notes := AutoGeneratedMarker
		if template.Notes != "" {
			notes = AutoGeneratedMarker + " " + template.Notes
		}

		if err := insertMaterialized(tx, &template, today, notes); err != nil {
			return 0, fmt.Errorf("materialize template %d: %w", template.ID, err)
		}

		// Advance from the template's current next_execution_date, not
		// from today: missed periods are never skipped over.
		nextDate, err := NextOccurrenceDate(template.NextExecutionDate, template.Frequency)
		if err != nil {
			return 0, fmt.Errorf("advance template %d: %w", template.ID, err)
		}
		if err := advanceTemplate(tx, template.ID, nextDate); err != nil {
			return 0, fmt.Errorf("advance template %d: %w", template.ID, err)
		}

		created++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit due pass: %w", err)
	}

	logger.L.Info("Recurring due pass completed", "date", today, "due", len(due), "created", created)
	return created, nil
}

func insertMaterialized(tx *sql.Tx, template *model.RecurringTransaction, date, notes string) error {
	now := time.Now()
	var currency interface{}
	if template.Currency != "" {
		currency = template.Currency
	}
	_, err := tx.Exec(`
		INSERT INTO transactions (user_id, description, amount, currency, date, type, category_id, notes, is_recurring, recurring_transaction_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?, ?)`,
		template.UserID, template.Description, template.Amount.StringFixed(2),
		currency, date, template.Type, template.CategoryID, notes,
		template.ID, now, now,
	)
	return err
}

func advanceTemplate(tx *sql.Tx, id int64, nextDate string) error {
	_, err := tx.Exec(`
		UPDATE recurring_transactions SET next_execution_date = ?, updated_at = ? WHERE id = ?`,
		nextDate, time.Now(), id)
	return err
}

func deactivateTemplate(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`
		UPDATE recurring_transactions SET is_active = FALSE, updated_at = ? WHERE id = ?`,
		time.Now(), id)
	return err
}

// InitialNextExecution computes the next_execution_date for a newly created
// template: one period after its start date.
func InitialNextExecution(startDate string, frequency model.Frequency) (string, error) {
	return NextOccurrenceDate(startDate, frequency)
}
