package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
)

type fakeRepo struct {
	mu           sync.Mutex
	services     map[uuid.UUID]*ServiceInfo
	names        map[uuid.UUID]string
	recurring    map[uuid.UUID]*RecurringAppointment
	appointments []*Appointment

	listSeriesCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		services:  make(map[uuid.UUID]*ServiceInfo),
		names:     make(map[uuid.UUID]string),
		recurring: make(map[uuid.UUID]*RecurringAppointment),
	}
}

func (f *fakeRepo) addService(providerID uuid.UUID, name, price string) *ServiceInfo {
	s := &ServiceInfo{ID: uuid.New(), ProviderID: providerID, Name: name, Price: decimal.RequireFromString(price), IsActive: true}
	f.services[s.ID] = s
	return s
}

func (f *fakeRepo) appointmentsOf(recurringID uuid.UUID) []*Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Appointment
	for _, a := range f.appointments {
		if a.RecurringID != nil && *a.RecurringID == recurringID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (f *fakeRepo) GetService(_ context.Context, id uuid.UUID) (*ServiceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) CreateRecurring(_ context.Context, rec *RecurringAppointment, occurrences []*Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.recurring[rec.ID] = &cp
	f.appointments = append(f.appointments, occurrences...)
	return nil
}

func (f *fakeRepo) GetRecurring(_ context.Context, id uuid.UUID) (*RecurringAppointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recurring[id]
	if !ok {
		return nil, ErrRecurringNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) ListRecurring(_ context.Context, userID uuid.UUID, role Role) ([]*RecurringDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*RecurringDetails
	for _, rec := range f.recurring {
		owner := rec.CustomerID
		if role == RoleProvider {
			owner = rec.ProviderID
		}
		if owner != userID {
			continue
		}
		cp := *rec
		out = append(out, &RecurringDetails{
			Recurring: &cp,
			Service:   *f.services[rec.ServiceID],
			Customer:  Party{ID: rec.CustomerID, Name: f.names[rec.CustomerID]},
			Provider:  Party{ID: rec.ProviderID, Name: f.names[rec.ProviderID]},
		})
	}
	return out, nil
}

func (f *fakeRepo) ListUpcoming(_ context.Context, recurringIDs []uuid.UUID, from time.Time, perRule int) (map[uuid.UUID][]*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(recurringIDs))
	for _, id := range recurringIDs {
		wanted[id] = true
	}

	sorted := append([]*Appointment(nil), f.appointments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make(map[uuid.UUID][]*Appointment)
	for _, a := range sorted {
		if a.RecurringID == nil || !wanted[*a.RecurringID] || a.Date.Before(from) {
			continue
		}
		if a.Status != StatusPending && a.Status != StatusConfirmed {
			continue
		}
		if len(out[*a.RecurringID]) < perRule {
			out[*a.RecurringID] = append(out[*a.RecurringID], a)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetActive(_ context.Context, id uuid.UUID, active bool) (*RecurringAppointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recurring[id]
	if !ok || rec.IsCancelled() {
		return nil, ErrAlreadyCancelled
	}
	rec.IsActive = active
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) Cancel(_ context.Context, id uuid.UUID, from time.Time) (*RecurringAppointment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recurring[id]
	if !ok || rec.IsCancelled() {
		return nil, 0, ErrAlreadyCancelled
	}
	now := time.Now()
	rec.IsActive = false
	rec.CancelledAt = &now

	var n int64
	for _, a := range f.appointments {
		if a.RecurringID == nil || *a.RecurringID != id || a.Date.Before(from) {
			continue
		}
		if a.Status == StatusPending || a.Status == StatusConfirmed {
			a.Status = StatusCancelled
			n++
		}
	}
	cp := *rec
	return &cp, n, nil
}

func (f *fakeRepo) ListSeries(_ context.Context) ([]*SeriesState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listSeriesCalls++

	var out []*SeriesState
	for _, rec := range f.recurring {
		if !rec.IsActive || rec.IsCancelled() {
			continue
		}
		st := &SeriesState{Recurring: rec}
		for _, a := range f.appointments {
			if a.RecurringID == nil || *a.RecurringID != rec.ID {
				continue
			}
			st.Existing++
			if st.LastDate == nil || a.Date.After(*st.LastDate) {
				d := a.Date
				st.LastDate = &d
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeRepo) InsertOccurrences(_ context.Context, occurrences []*Appointment) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range occurrences {
		dup := false
		for _, a := range f.appointments {
			if a.RecurringID != nil && *a.RecurringID == *o.RecurringID && a.Date.Equal(o.Date) {
				dup = true
				break
			}
		}
		if !dup {
			f.appointments = append(f.appointments, o)
			n++
		}
	}
	return n, nil
}

type notice struct {
	userID      uuid.UUID
	recurringID uuid.UUID
	service     string
	created     int
	cancelled   bool
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) NotifyRecurringBooked(_ context.Context, providerID, recurringID uuid.UUID, serviceName string, created int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{userID: providerID, recurringID: recurringID, service: serviceName, created: created})
}

func (n *recordingNotifier) NotifyRecurringCancelled(_ context.Context, userID, recurringID uuid.UUID, serviceName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{userID: userID, recurringID: recurringID, service: serviceName, cancelled: true})
}

func mustDate(s string) time.Time {
	d, err := recurrence.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixedClock(s string) func() time.Time {
	t := mustDate(s).Add(9 * time.Hour)
	return func() time.Time { return t }
}

func intPtr(v int) *int               { return &v }
func strPtr(s string) *string         { return &s }
func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
