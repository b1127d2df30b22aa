package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/pkg/database"
	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
)

// Repository defines recurring appointment data access
type Repository interface {
	GetService(ctx context.Context, id uuid.UUID) (*ServiceInfo, error)

	// CreateRecurring inserts the booking and its first occurrences in one transaction.
	CreateRecurring(ctx context.Context, rec *RecurringAppointment, occurrences []*Appointment) error
	GetRecurring(ctx context.Context, id uuid.UUID) (*RecurringAppointment, error)
	ListRecurring(ctx context.Context, userID uuid.UUID, role Role) ([]*RecurringDetails, error)
	// ListUpcoming returns up to perRule open appointments on or after from, per booking.
	ListUpcoming(ctx context.Context, recurringIDs []uuid.UUID, from time.Time, perRule int) (map[uuid.UUID][]*Appointment, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*RecurringAppointment, error)
	// Cancel closes the booking and cancels its open appointments on or after from.
	Cancel(ctx context.Context, id uuid.UUID, from time.Time) (*RecurringAppointment, int64, error)

	ListSeries(ctx context.Context) ([]*SeriesState, error)
	// InsertOccurrences skips dates the booking already has and returns how many were added.
	InsertOccurrences(ctx context.Context, occurrences []*Appointment) (int, error)
}

const recurringColumns = `r.id, r.customer_id, r.provider_id, r.service_id, r.pattern, r.frequency,
	r.day_of_week, r.day_of_month, r.start_time, r.start_date, r.end_date, r.occurrences,
	r.address, r.note, r.is_active, r.cancelled_at, r.created_at, r.updated_at`

const appointmentColumns = `id, service_id, customer_id, provider_id, recurring_id, date, start_time,
	status, payment_mode, address, note, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

// NewRepository creates recurring appointment repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetService(ctx context.Context, id uuid.UUID) (*ServiceInfo, error) {
	var s ServiceInfo
	err := r.db.GetContext(ctx, &s, `SELECT id, provider_id, name, price, is_active FROM services WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) CreateRecurring(ctx context.Context, rec *RecurringAppointment, occurrences []*Appointment) error {
	return database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO recurring_appointments (id, customer_id, provider_id, service_id, pattern, frequency,
				day_of_week, day_of_month, start_time, start_date, end_date, occurrences,
				address, note, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`
		_, err := tx.ExecContext(ctx, query,
			rec.ID,
			rec.CustomerID,
			rec.ProviderID,
			rec.ServiceID,
			rec.Pattern,
			rec.Frequency,
			rec.DayOfWeek,
			rec.DayOfMonth,
			rec.Time,
			rec.StartDate,
			rec.EndDate,
			rec.Occurrences,
			rec.Address,
			rec.Note,
			rec.IsActive,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert recurring appointment: %w", err)
		}

		n, err := insertAppointments(ctx, tx, occurrences)
		if err != nil {
			return err
		}
		if n != len(occurrences) {
			return fmt.Errorf("inserted %d of %d appointments", n, len(occurrences))
		}
		return nil
	})
}

func (r *repository) GetRecurring(ctx context.Context, id uuid.UUID) (*RecurringAppointment, error) {
	var rec RecurringAppointment
	err := r.db.GetContext(ctx, &rec, `SELECT `+recurringColumns+` FROM recurring_appointments r WHERE r.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecurringNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type recurringRow struct {
	RecurringAppointment
	ServiceName  string          `db:"service_name"`
	ServicePrice decimal.Decimal `db:"service_price"`
	CustomerName string          `db:"customer_name"`
	ProviderName string          `db:"provider_name"`
}

func (r *repository) ListRecurring(ctx context.Context, userID uuid.UUID, role Role) ([]*RecurringDetails, error) {
	column := "r.customer_id"
	if role == RoleProvider {
		column = "r.provider_id"
	}
	query := `SELECT ` + recurringColumns + `,
			s.name AS service_name, s.price AS service_price,
			COALESCE(c.name, '') AS customer_name, COALESCE(p.name, '') AS provider_name
		FROM recurring_appointments r
		JOIN services s ON s.id = r.service_id
		LEFT JOIN users c ON c.id = r.customer_id
		LEFT JOIN users p ON p.id = r.provider_id
		WHERE ` + column + ` = $1
		ORDER BY r.created_at DESC
	`

	var rows []recurringRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	out := make([]*RecurringDetails, 0, len(rows))
	for i := range rows {
		row := rows[i]
		rec := row.RecurringAppointment
		out = append(out, &RecurringDetails{
			Recurring: &rec,
			Service:   ServiceInfo{ID: rec.ServiceID, ProviderID: rec.ProviderID, Name: row.ServiceName, Price: row.ServicePrice},
			Customer:  Party{ID: rec.CustomerID, Name: row.CustomerName},
			Provider:  Party{ID: rec.ProviderID, Name: row.ProviderName},
		})
	}
	return out, nil
}

func (r *repository) ListUpcoming(ctx context.Context, recurringIDs []uuid.UUID, from time.Time, perRule int) (map[uuid.UUID][]*Appointment, error) {
	out := make(map[uuid.UUID][]*Appointment, len(recurringIDs))
	if len(recurringIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(recurringIDs))
	for i, id := range recurringIDs {
		ids[i] = id.String()
	}

	query := `SELECT ` + appointmentColumns + `
		FROM (
			SELECT a.*, ROW_NUMBER() OVER (PARTITION BY a.recurring_id ORDER BY a.date, a.start_time) AS rn
			FROM appointments a
			WHERE a.recurring_id = ANY($1::uuid[])
				AND a.date >= $2
				AND a.status IN ('PENDING', 'CONFIRMED')
		) upcoming
		WHERE rn <= $3
		ORDER BY recurring_id, date, start_time
	`
	var list []*Appointment
	if err := r.db.SelectContext(ctx, &list, query, pq.StringArray(ids), from, perRule); err != nil {
		return nil, err
	}
	for _, a := range list {
		if a.RecurringID != nil {
			out[*a.RecurringID] = append(out[*a.RecurringID], a)
		}
	}
	return out, nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*RecurringAppointment, error) {
	var rec RecurringAppointment
	err := r.db.GetContext(ctx, &rec, `
		UPDATE recurring_appointments r
		SET is_active = $2, updated_at = NOW()
		WHERE r.id = $1 AND r.cancelled_at IS NULL
		RETURNING `+recurringColumns, id, active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyCancelled
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Cancel(ctx context.Context, id uuid.UUID, from time.Time) (*RecurringAppointment, int64, error) {
	var rec RecurringAppointment
	var cancelled int64

	err := database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &rec, `
			UPDATE recurring_appointments r
			SET is_active = FALSE, cancelled_at = NOW(), updated_at = NOW()
			WHERE r.id = $1 AND r.cancelled_at IS NULL
			RETURNING `+recurringColumns, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAlreadyCancelled
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = 'CANCELLED', updated_at = NOW()
			WHERE recurring_id = $1 AND date >= $2 AND status IN ('PENDING', 'CONFIRMED')
		`, id, from)
		if err != nil {
			return err
		}
		cancelled, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return &rec, cancelled, nil
}

type seriesRow struct {
	RecurringAppointment
	Existing int        `db:"existing"`
	LastDate *time.Time `db:"last_date"`
}

func (r *repository) ListSeries(ctx context.Context) ([]*SeriesState, error) {
	query := `SELECT ` + recurringColumns + `, COUNT(a.id) AS existing, MAX(a.date) AS last_date
		FROM recurring_appointments r
		LEFT JOIN appointments a ON a.recurring_id = r.id
		WHERE r.is_active AND r.cancelled_at IS NULL
		GROUP BY r.id
		ORDER BY r.created_at
	`
	var rows []seriesRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	out := make([]*SeriesState, 0, len(rows))
	for i := range rows {
		rec := rows[i].RecurringAppointment
		out = append(out, &SeriesState{Recurring: &rec, Existing: rows[i].Existing, LastDate: rows[i].LastDate})
	}
	return out, nil
}

func (r *repository) InsertOccurrences(ctx context.Context, occurrences []*Appointment) (int, error) {
	var n int
	err := database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		n, err = insertAppointments(ctx, tx, occurrences)
		return err
	})
	return n, err
}

func insertAppointments(ctx context.Context, tx *sqlx.Tx, occurrences []*Appointment) (int, error) {
	query := `
		INSERT INTO appointments (id, service_id, customer_id, provider_id, recurring_id, date, start_time,
			status, payment_mode, address, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (recurring_id, date) DO NOTHING
	`
	inserted := 0
	for _, a := range occurrences {
		res, err := tx.ExecContext(ctx, query,
			a.ID,
			a.ServiceID,
			a.CustomerID,
			a.ProviderID,
			a.RecurringID,
			a.Date,
			a.Time,
			a.Status,
			a.PaymentMode,
			a.Address,
			a.Note,
			a.CreatedAt,
			a.UpdatedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert appointment %s: %w", recurrence.FormatDate(a.Date), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}
