package booking

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"courtbook/internal/catalog"
	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/lock"
	"courtbook/internal/model"
	"courtbook/internal/pricing"
	"courtbook/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2026-10-19, noon.
var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const (
	nextMonday = "2026-10-26"
	owner      = "owner-1"
	requester  = "player-1"
	opsManager = "ops-1"
)

type testCatalog map[string]*model.Resource

func (c testCatalog) GetResource(_ context.Context, id string) (*model.Resource, error) {
	r, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrResourceNotFound, id)
	}
	return r, nil
}

func court() *model.Resource {
	open := model.DayHours{IsOpen: true, Open: "08:00", Close: "22:00"}
	return &model.Resource{
		ID:          "court-1",
		Name:        "Center Court",
		OwnerID:     owner,
		RatePerHour: decimal.NewFromInt(25),
		Hours: map[time.Weekday]model.DayHours{
			time.Monday:   open,
			time.Tuesday:  open,
			time.Saturday: {IsOpen: true, Open: "09:00", Close: "13:00"},
		},
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingNotifier) Emit(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	manager  *Manager
	store    *store.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	n := &recordingNotifier{}
	m := NewManager(Deps{
		Catalog: testCatalog{"court-1": court()},
		Discounts: pricing.NewStaticDiscounts([]model.Discount{
			{Code: "WELCOME10", Kind: model.DiscountPercent, Value: decimal.NewFromInt(10)},
			{Code: "FREE", Kind: model.DiscountAmount, Value: decimal.NewFromInt(1000)},
		}),
		Store:      s,
		Locker:     lock.NewKeyedMutex(time.Second),
		Notifier:   n,
		Authorizer: NewRoleAuthorizer([]string{opsManager}),
	}, Options{Now: func() time.Time { return now }}, zerolog.Nop())
	return &fixture{manager: m, store: s, notifier: n}
}

func request(date, start, end string) CreateRequest {
	return CreateRequest{
		ResourceID:  "court-1",
		RequesterID: requester,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

func TestCreate_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.StatusPending, b.Status)
	assertDecimal(t, "2", b.DurationHours)
	assertDecimal(t, "50", b.BaseAmount)
	assertDecimal(t, "0", b.AdditionalCharges)
	assertDecimal(t, "0", b.DiscountAmount)
	assertDecimal(t, "50", b.TotalAmount)
	assert.Equal(t, now, b.CreatedAt)
	assert.Equal(t, nextMonday, b.DateKey())
	assert.Equal(t, 10, b.StartTime.Hour())
	assert.Equal(t, 12, b.EndTime.Hour())
	assert.Equal(t, []events.Type{events.TypeCreated}, f.notifier.types())

	all, err := f.manager.GetAvailableSlots(ctx, "court-1", b.Date)
	require.NoError(t, err)
	require.Len(t, all, 14)
	for _, s := range all {
		booked := s.Start.Hour() == 10 || s.Start.Hour() == 11
		assert.Equal(t, !booked, s.Available, s.Start.Format("15:04"))
	}
}

func TestCreate_TotalIsRateTimesDuration(t *testing.T) {
	tests := []struct {
		start, end string
		total      string
	}{
		{"08:00", "09:00", "25"},
		{"09:00", "10:30", "37.5"},
		{"12:00", "15:30", "87.5"},
		{"18:00", "22:00", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			f := newFixture(t)
			b, err := f.manager.Create(context.Background(), request(nextMonday, tt.start, tt.end))
			require.NoError(t, err)
			assert.Equal(t, model.StatusPending, b.Status)
			assertDecimal(t, tt.total, b.TotalAmount)
		})
	}
}

func TestCreate_AddOnsAndDiscounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(nextMonday, "10:00", "12:00")
	req.AddOns = []model.AddOn{{Name: "rackets", Amount: decimal.NewFromInt(10)}}
	req.DiscountCode = "welcome10"
	b, err := f.manager.Create(ctx, req)
	require.NoError(t, err)
	assertDecimal(t, "50", b.BaseAmount)
	assertDecimal(t, "10", b.AdditionalCharges)
	assertDecimal(t, "6", b.DiscountAmount)
	assertDecimal(t, "54", b.TotalAmount)
	assert.Equal(t, "welcome10", b.DiscountCode)

	req = request(nextMonday, "14:00", "15:00")
	req.DiscountCode = "FREE"
	b, err = f.manager.Create(ctx, req)
	require.NoError(t, err)
	assertDecimal(t, "0", b.TotalAmount)
	assert.False(t, b.TotalAmount.IsNegative())
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		want   error
	}{
		{"missing resource", func(r *CreateRequest) { r.ResourceID = "" }, ErrValidation},
		{"missing requester", func(r *CreateRequest) { r.RequesterID = " " }, ErrValidation},
		{"missing date", func(r *CreateRequest) { r.Date = "" }, ErrValidation},
		{"malformed date", func(r *CreateRequest) { r.Date = "26.10.2026" }, ErrValidation},
		{"malformed start", func(r *CreateRequest) { r.StartTime = "10h" }, ErrValidation},
		{"out of range end", func(r *CreateRequest) { r.EndTime = "25:00" }, ErrValidation},
		{"unknown discount", func(r *CreateRequest) { r.DiscountCode = "NOPE" }, ErrValidation},
		{"negative add-on", func(r *CreateRequest) {
			r.AddOns = []model.AddOn{{Name: "refund", Amount: decimal.NewFromInt(-5)}}
		}, ErrValidation},
		{"unnamed add-on", func(r *CreateRequest) { r.AddOns = []model.AddOn{{Amount: decimal.NewFromInt(5)}} }, ErrValidation},
		{"past date", func(r *CreateRequest) { r.Date = "2026-10-18" }, ErrPastDate},
		{"end before start", func(r *CreateRequest) { r.StartTime, r.EndTime = "12:00", "10:00" }, ErrInvalidDuration},
		{"end equals start", func(r *CreateRequest) { r.StartTime, r.EndTime = "10:00", "10:00" }, ErrInvalidDuration},
		{"below minimum", func(r *CreateRequest) { r.StartTime, r.EndTime = "09:00", "09:30" }, ErrInvalidDuration},
		{"off granularity", func(r *CreateRequest) { r.StartTime, r.EndTime = "10:00", "11:15" }, ErrInvalidDuration},
		{"unknown resource", func(r *CreateRequest) { r.ResourceID = "court-9" }, ErrNotFound},
		{"before opening", func(r *CreateRequest) { r.StartTime, r.EndTime = "07:00", "09:00" }, ErrSlotUnavailable},
		{"after closing", func(r *CreateRequest) { r.StartTime, r.EndTime = "21:00", "23:00" }, ErrSlotUnavailable},
		{"closed weekday", func(r *CreateRequest) { r.Date = "2026-10-25" }, ErrSlotUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := request(nextMonday, "10:00", "12:00")
			tt.mutate(&req)

			b, err := f.manager.Create(context.Background(), req)
			assert.Nil(t, b)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsBusinessError(err))
			assert.Equal(t, 0, f.store.Len(), "failed create leaves no booking")
			assert.Empty(t, f.notifier.types())
		})
	}
}

func TestCreate_TodayIsAllowed(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Create(context.Background(), request("2026-10-19", "18:00", "19:00"))
	assert.NoError(t, err)
}

func TestCreate_Overlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, request(nextMonday, "11:00", "13:00"))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = f.manager.Create(ctx, request(nextMonday, "12:00", "13:00"))
	assert.NoError(t, err, "adjacent interval is free")

	_, err = f.manager.Create(ctx, request("2026-10-27", "10:00", "12:00"))
	assert.NoError(t, err, "other date is independent")
}

func runConcurrentCreates(t *testing.T, m *Manager, workers int) (wins, conflicts int) {
	t.Helper()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(nextMonday, "10:00", "12:00")
			if i%2 == 1 {
				req.StartTime, req.EndTime = "11:00", "13:00"
			}
			req.RequesterID = fmt.Sprintf("player-%d", i)
			<-start
			_, err := m.Create(context.Background(), req)
			mu.Lock()
			res = append(res, err)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range res {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	return wins, conflicts
}

func TestCreate_ConcurrentOverlapSingleWinner(t *testing.T) {
	f := newFixture(t)
	wins, conflicts := runConcurrentCreates(t, f.manager, 16)
	assert.Equal(t, 1, wins)
	assert.Equal(t, 15, conflicts)
	assert.Equal(t, 1, f.store.Len())
}

func TestCreate_ConcurrentWithoutLockerRelyOnStore(t *testing.T) {
	s := store.NewMemoryStore()
	m := NewManager(Deps{
		Catalog: testCatalog{"court-1": court()},
		Store:   s,
	}, Options{Now: func() time.Time { return now }}, zerolog.Nop())

	wins, conflicts := runConcurrentCreates(t, m, 16)
	assert.Equal(t, 1, wins)
	assert.Equal(t, 15, conflicts)
	assert.Equal(t, 1, s.Len())
}

func TestCreate_ConcurrentOnSQLite(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "courtbook.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := store.NewSQLiteStore(db.DB, time.UTC)
	m := NewManager(Deps{
		Catalog: testCatalog{"court-1": court()},
		Store:   s,
	}, Options{Now: func() time.Time { return now }}, zerolog.Nop())

	wins, conflicts := runConcurrentCreates(t, m, 8)
	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, conflicts)
}

// racingStore hides existing bookings from the advisory read, so only the
// atomic insert can detect the overlap.
type racingStore struct {
	*store.MemoryStore
}

func (r racingStore) FindOverlapping(context.Context, string, time.Time, time.Time, time.Time, []model.Status) ([]model.Booking, error) {
	return nil, nil
}

func TestCreate_LostRaceAtInsert(t *testing.T) {
	s := racingStore{store.NewMemoryStore()}
	m := NewManager(Deps{Catalog: testCatalog{"court-1": court()}, Store: s},
		Options{Now: func() time.Time { return now }}, zerolog.Nop())
	ctx := context.Background()

	_, err := m.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	_, err = m.Create(ctx, request(nextMonday, "11:00", "13:00"))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, 1, s.Len())
}

type timeoutLocker struct{}

func (timeoutLocker) Lock(context.Context, string) (func(), error) {
	return nil, lock.ErrLockTimeout
}

func TestCreate_LockTimeoutIsInfrastructure(t *testing.T) {
	s := store.NewMemoryStore()
	m := NewManager(Deps{Catalog: testCatalog{"court-1": court()}, Store: s, Locker: timeoutLocker{}},
		Options{Now: func() time.Time { return now }}, zerolog.Nop())

	_, err := m.Create(context.Background(), request(nextMonday, "10:00", "12:00"))
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.False(t, IsBusinessError(err))
	assert.Equal(t, 0, s.Len())
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	confirmed, err := f.manager.UpdateStatus(ctx, b.ID, model.StatusConfirmed, owner, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, now, *confirmed.ConfirmedAt)

	completed, err := f.manager.UpdateStatus(ctx, b.ID, model.StatusCompleted, opsManager, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	_, err = f.manager.UpdateStatus(ctx, b.ID, model.StatusCancelled, opsManager, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t,
		[]events.Type{events.TypeCreated, events.TypeConfirmed, events.TypeCompleted},
		f.notifier.types())
}

func TestUpdateStatus_CancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)
	_, err = f.manager.UpdateStatus(ctx, b.ID, model.StatusConfirmed, owner, "")
	require.NoError(t, err)

	cancelled, err := f.manager.UpdateStatus(ctx, b.ID, model.StatusCancelled, requester, "scheduling conflict")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "scheduling conflict", cancelled.CancellationReason)
	require.NotNil(t, cancelled.ConfirmedAt, "earlier timestamps survive")

	again, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, again.ID)

	list, err := f.manager.ListBookings(ctx, "court-1", b.Date)
	require.NoError(t, err)
	assert.Len(t, list, 2, "cancelled booking is kept for history")
}

func TestUpdateStatus_InvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(ctx, b.ID, model.StatusCompleted, owner, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending -> completed")
	assert.NotContains(t, err.Error(), "already")

	_, err = f.manager.UpdateStatus(ctx, b.ID, model.StatusPending, owner, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending -> pending")

	cancelled, err := f.manager.UpdateStatus(ctx, b.ID, model.StatusCancelled, owner, "rain")
	require.NoError(t, err)
	firstCancel := *cancelled.CancelledAt

	_, err = f.manager.UpdateStatus(ctx, b.ID, model.StatusConfirmed, owner, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "cancelled -> confirmed")

	_, err = f.manager.UpdateStatus(ctx, b.ID, model.StatusCancelled, owner, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition, "cancelled -> cancelled")
	assert.ErrorContains(t, err, "already cancelled")

	stored, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "rain", stored.CancellationReason)
	assert.Equal(t, firstCancel, *stored.CancelledAt)
}

func TestUpdateStatus_Authorization(t *testing.T) {
	tests := []struct {
		name   string
		actor  string
		status model.Status
		want   error
	}{
		{"requester cancels own", requester, model.StatusCancelled, nil},
		{"requester cannot confirm", requester, model.StatusConfirmed, ErrUnauthorized},
		{"stranger cannot cancel", "player-2", model.StatusCancelled, ErrUnauthorized},
		{"anonymous", "", model.StatusCancelled, ErrUnauthorized},
		{"owner confirms", owner, model.StatusConfirmed, nil},
		{"manager confirms", opsManager, model.StatusConfirmed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			b, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
			require.NoError(t, err)

			_, err = f.manager.UpdateStatus(ctx, b.ID, tt.status, tt.actor, "")
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)

			stored, err := f.manager.Get(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusPending, stored.Status)
		})
	}
}

func TestUpdateStatus_UnauthorizedCheckedBeforeTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(ctx, b.ID, model.StatusCompleted, "player-2", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateStatus_NotFoundAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.UpdateStatus(ctx, "missing", model.StatusCancelled, owner, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.manager.UpdateStatus(ctx, "missing", model.Status("archived"), owner, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.manager.UpdateStatus(ctx, "", model.StatusCancelled, owner, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.manager.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// flakyStore rejects the first Update as a stale write after changing nothing.
type flakyStore struct {
	*store.MemoryStore
	mu    sync.Mutex
	stale int
}

func (f *flakyStore) Update(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	f.mu.Lock()
	if f.stale > 0 {
		f.stale--
		f.mu.Unlock()
		return nil, store.ErrConcurrentModification
	}
	f.mu.Unlock()
	return f.MemoryStore.Update(ctx, b)
}

func TestUpdateStatus_RetriesStaleVersion(t *testing.T) {
	s := &flakyStore{MemoryStore: store.NewMemoryStore(), stale: 1}
	m := NewManager(Deps{Catalog: testCatalog{"court-1": court()}, Store: s},
		Options{Now: func() time.Time { return now }}, zerolog.Nop())
	ctx := context.Background()

	b, err := m.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	updated, err := m.UpdateStatus(ctx, b.ID, model.StatusConfirmed, owner, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	s.stale = maxUpdateAttempts
	_, err = m.UpdateStatus(ctx, b.ID, model.StatusCompleted, owner, "")
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
	assert.False(t, IsBusinessError(err))
}

func TestUpdateStatus_NotifierFailureKeepsState(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	bus.SubscribeAll("broken", func(context.Context, events.Event) error { return errors.New("smtp down") })

	s := store.NewMemoryStore()
	m := NewManager(Deps{Catalog: testCatalog{"court-1": court()}, Store: s, Notifier: bus},
		Options{Now: func() time.Time { return now }}, zerolog.Nop())
	ctx := context.Background()

	b, err := m.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, b.ID, model.StatusCancelled, requester, "")
	require.NoError(t, err)

	stored, err := m.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestUpdateStatus_ConcurrentCancelSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.manager.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		invalid int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.UpdateStatus(ctx, b.ID, model.StatusCancelled, owner, "dup")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrInvalidTransition):
				invalid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 7, invalid)
}

func TestGetAvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saturday := time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)
	got, err := f.manager.GetAvailableSlots(ctx, "court-1", saturday)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 9, got[0].Start.Hour())
	assertDecimal(t, "1", got[0].DurationHours)

	sunday := saturday.AddDate(0, 0, 1)
	got, err = f.manager.GetAvailableSlots(ctx, "court-1", sunday)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.manager.GetAvailableSlots(ctx, "court-9", saturday)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFreeWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, request("2026-10-24", "10:00", "11:00"))
	require.NoError(t, err)

	saturday := time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)
	windows, err := f.manager.FreeWindows(ctx, "court-1", saturday)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, 9, windows[0].Start.Hour())
	assert.Equal(t, time.Hour, windows[0].Duration())
	assert.Equal(t, 11, windows[1].Start.Hour())
	assert.Equal(t, 13, windows[1].End.Hour())

	_, err = f.manager.FreeWindows(ctx, "court-9", saturday)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBookings_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.ListBookings(context.Background(), "", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRoleAuthorizer_DeletedResource(t *testing.T) {
	a := NewRoleAuthorizer([]string{opsManager, ""})
	b := &model.Booking{RequesterID: requester}
	ctx := context.Background()

	assert.True(t, a.CanTransition(ctx, opsManager, b, nil, model.StatusConfirmed))
	assert.True(t, a.CanTransition(ctx, requester, b, nil, model.StatusCancelled))
	assert.False(t, a.CanTransition(ctx, owner, b, nil, model.StatusConfirmed))
	assert.False(t, a.CanTransition(ctx, "", &model.Booking{}, nil, model.StatusCancelled))
}

type slowNotifier struct {
	delay time.Duration
}

func (n slowNotifier) Emit(context.Context, events.Event) {
	time.Sleep(n.delay)
}

func TestCreate_SlowNotifierDoesNotHoldSlotLock(t *testing.T) {
	m := NewManager(Deps{
		Catalog:  testCatalog{"court-1": court()},
		Store:    store.NewMemoryStore(),
		Locker:   lock.NewKeyedMutex(100 * time.Millisecond),
		Notifier: slowNotifier{delay: 300 * time.Millisecond},
	}, Options{Now: func() time.Time { return now }}, zerolog.Nop())

	intervals := [][2]string{{"10:00", "11:00"}, {"15:00", "16:00"}}
	errs := make([]error, len(intervals))
	var wg sync.WaitGroup
	for i, iv := range intervals {
		wg.Add(1)
		go func(i int, start, end string) {
			defer wg.Done()
			_, errs[i] = m.Create(context.Background(), request(nextMonday, start, end))
		}(i, iv[0], iv[1])
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "create %d", i)
	}
}

func TestUpdateStatus_SlowNotifierDoesNotHoldBookingLock(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	fast := NewManager(Deps{
		Catalog:    testCatalog{"court-1": court()},
		Store:      s,
		Authorizer: NewRoleAuthorizer([]string{opsManager}),
	}, Options{Now: func() time.Time { return now }}, zerolog.Nop())
	b, err := fast.Create(ctx, request(nextMonday, "10:00", "12:00"))
	require.NoError(t, err)

	m := NewManager(Deps{
		Catalog:    testCatalog{"court-1": court()},
		Store:      s,
		Locker:     lock.NewKeyedMutex(100 * time.Millisecond),
		Notifier:   slowNotifier{delay: 300 * time.Millisecond},
		Authorizer: NewRoleAuthorizer([]string{opsManager}),
	}, Options{Now: func() time.Time { return now }}, zerolog.Nop())

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, status := range []model.Status{model.StatusConfirmed, model.StatusCancelled} {
		wg.Add(1)
		go func(i int, status model.Status) {
			defer wg.Done()
			_, errs[i] = m.UpdateStatus(ctx, b.ID, status, opsManager, "")
		}(i, status)
	}
	wg.Wait()

	for _, err := range errs {
		assert.False(t, errors.Is(err, lock.ErrLockTimeout), "unexpected lock timeout: %v", err)
	}
	got, err := m.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}
