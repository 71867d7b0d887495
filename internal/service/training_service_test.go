package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/availability"
	"github.com/spec-kit/pqr-service/internal/calendar"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/events"
	"github.com/spec-kit/pqr-service/internal/testutil"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

var bogota = availability.FixedZone(-5)

type trainingFixture struct {
	store      *testutil.Store
	calendar   *testutil.Calendar
	dispatcher *testutil.Dispatcher
	svc        *TrainingService
}

func newTrainingFixture(t *testing.T) *trainingFixture {
	t.Helper()
	store := testutil.NewStore()
	store.Users.Add(domain.User{ID: "ent-1", Username: "clinica", Role: domain.RoleEntidad, AuthCode: strPtr("AUTH-ENT")})
	store.Users.Add(domain.User{ID: "ges-1", Username: "gestor", Role: domain.RoleGestor, AuthCode: strPtr("AUTH-GES")})

	cal := &testutil.Calendar{EventID: "evt-1"}
	dispatcher := &testutil.Dispatcher{}
	svc := NewTrainingService(TrainingDependencies{
		TrainingRepo: store.Trainings,
		UserRepo:     store.Users,
		Calendar:     cal,
		Calculator:   availability.NewCalculator(8, 18, bogota),
		Dispatcher:   dispatcher,
		Logger:       zap.NewNop(),
		Now:          func() time.Time { return time.Date(2030, 6, 1, 12, 0, 0, 0, bogota) },
	})
	return &trainingFixture{store: store, calendar: cal, dispatcher: dispatcher, svc: svc}
}

// newCachedTrainingFixture wires a redismock-backed busy cache with a one-minute TTL.
func newCachedTrainingFixture(t *testing.T) (*trainingFixture, redismock.ClientMock) {
	t.Helper()
	f := newTrainingFixture(t)
	db, mock := redismock.NewClientMock()
	f.svc.cache = calendar.NewBusyCache(db, time.Minute)
	return f, mock
}

func at(hour int) time.Time {
	return time.Date(2030, 6, 10, hour, 0, 0, 0, bogota)
}

func TestAvailabilityMergesCalendarAndBookings(t *testing.T) {
	f := newTrainingFixture(t)
	f.calendar.BusySeq = [][]availability.Interval{{{Start: at(9), End: at(11)}}}
	require.NoError(t, f.store.Trainings.Create(context.Background(), &domain.Training{ID: "t-1", StartTime: at(15), EndTime: at(16), EntityID: "ent-1"}))

	slots, err := f.svc.Availability(context.Background(), "2030-06-10", 2)
	require.NoError(t, err)

	var labels []string
	for _, s := range slots {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"11:00 - 13:00", "12:00 - 14:00", "13:00 - 15:00", "16:00 - 18:00"}, labels)
}

func TestAvailabilityDegenerateAndInvalid(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()

	for _, d := range []int{0, -1, 11} {
		slots, err := f.svc.Availability(ctx, "2030-06-10", d)
		require.NoError(t, err)
		assert.Empty(t, slots)
	}
	assert.Zero(t, f.calendar.BusyCalls)

	_, err := f.svc.Availability(ctx, "10/06/2030", 2)
	assertCode(t, err, apperrors.CodeValidation)

	f.calendar.BusyErr = errors.New("quota exceeded")
	_, err = f.svc.Availability(ctx, "2030-06-10", 2)
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	f := newTrainingFixture(t)
	f.calendar.BusySeq = [][]availability.Interval{{{Start: at(9), End: at(11)}}}
	ctx := context.Background()

	free, err := f.svc.Check(ctx, at(11), at(13))
	require.NoError(t, err)
	assert.True(t, free)

	free, err = f.svc.Check(ctx, at(10), at(12))
	require.NoError(t, err)
	assert.False(t, free)

	free, err = f.svc.Check(ctx, at(17), at(19))
	require.NoError(t, err)
	assert.False(t, free)

	_, err = f.svc.Check(ctx, at(12), at(12))
	assertCode(t, err, apperrors.CodeValidation)
}

func TestBookWithDateHourDuration(t *testing.T) {
	f := newTrainingFixture(t)
	hour := 10

	training, err := f.svc.Book(context.Background(), BookingInput{AuthCode: " AUTH-ENT ", Date: "2030-06-10", Hour: &hour, Duration: 2})
	require.NoError(t, err)
	assert.True(t, training.StartTime.Equal(at(10)))
	assert.True(t, training.EndTime.Equal(at(12)))
	assert.Equal(t, "ent-1", training.EntityID)
	require.NotNil(t, training.CalendarEventID)
	assert.Equal(t, "evt-1", *training.CalendarEventID)
	assert.Len(t, f.calendar.Created, 1)

	stored := f.store.Trainings.All()
	require.Len(t, stored, 1)
	assert.Equal(t, "evt-1", *stored[0].CalendarEventID)
	assert.Len(t, f.dispatcher.Published(events.EventTrainingBooked), 1)

	_, err = f.svc.Book(context.Background(), BookingInput{AuthCode: "AUTH-ENT", Date: "2030-06-10", Hour: &hour, Duration: 1})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestBookChecksFreshCalendarData(t *testing.T) {
	f := newTrainingFixture(t)
	start, end := at(10), at(12)
	f.calendar.BusySeq = [][]availability.Interval{
		nil,
		{{Start: at(11), End: at(12)}},
	}

	free, err := f.svc.Check(context.Background(), start, end)
	require.NoError(t, err)
	require.True(t, free)

	_, err = f.svc.Book(context.Background(), BookingInput{AuthCode: "AUTH-ENT", Start: &start, End: &end})
	assertCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, 2, f.calendar.BusyCalls)
	assert.Empty(t, f.store.Trainings.All())
}

func TestBookIgnoresStaleCachedSnapshot(t *testing.T) {
	f, mock := newCachedTrainingFixture(t)
	start, end := at(9), at(10)

	// The cached snapshot still shows 09:00-11:00 busy; the calendar no longer does.
	mock.ExpectGet(calendar.GenerationKey("2030-06-10")).RedisNil()
	mock.ExpectGet(calendar.Key("2030-06-10", 0)).SetVal(`[{"start":"2030-06-10T14:00:00Z","end":"2030-06-10T16:00:00Z"}]`)
	mock.ExpectTxPipeline()
	mock.ExpectIncr(calendar.GenerationKey("2030-06-10")).SetVal(1)
	mock.ExpectExpire(calendar.GenerationKey("2030-06-10"), 7*24*time.Hour).SetVal(true)
	mock.ExpectTxPipelineExec()

	slots, err := f.svc.Availability(context.Background(), "2030-06-10", 1)
	require.NoError(t, err)
	for _, slot := range slots {
		assert.NotEqual(t, "09:00 - 10:00", slot.Label)
	}
	assert.Zero(t, f.calendar.BusyCalls)

	training, err := f.svc.Book(context.Background(), BookingInput{AuthCode: "AUTH-ENT", Start: &start, End: &end})
	require.NoError(t, err)
	assert.True(t, training.StartTime.Equal(at(9)))
	assert.Equal(t, 1, f.calendar.BusyCalls)
	assert.Len(t, f.store.Trainings.All(), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityServesCachedSnapshot(t *testing.T) {
	f, mock := newCachedTrainingFixture(t)

	mock.ExpectGet(calendar.GenerationKey("2030-06-10")).SetVal("3")
	mock.ExpectGet(calendar.Key("2030-06-10", 3)).SetVal(`[{"start":"2030-06-10T14:00:00Z","end":"2030-06-10T16:00:00Z"}]`)

	slots, err := f.svc.Availability(context.Background(), "2030-06-10", 1)
	require.NoError(t, err)
	assert.Zero(t, f.calendar.BusyCalls)
	assert.Len(t, slots, 8)
	for _, slot := range slots {
		assert.NotEqual(t, "09:00 - 10:00", slot.Label)
		assert.NotEqual(t, "10:00 - 11:00", slot.Label)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityFillsCacheOnMiss(t *testing.T) {
	f, mock := newCachedTrainingFixture(t)

	mock.ExpectGet(calendar.GenerationKey("2030-06-10")).RedisNil()
	mock.ExpectGet(calendar.Key("2030-06-10", 0)).RedisNil()
	mock.ExpectSet(calendar.Key("2030-06-10", 0), "[]", time.Minute).SetVal("OK")

	slots, err := f.svc.Availability(context.Background(), "2030-06-10", 1)
	require.NoError(t, err)
	assert.Len(t, slots, 10)
	assert.Equal(t, 1, f.calendar.BusyCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityBypassesUnreachableCache(t *testing.T) {
	f, mock := newCachedTrainingFixture(t)

	mock.ExpectGet(calendar.GenerationKey("2030-06-10")).SetErr(errors.New("redis down"))

	slots, err := f.svc.Availability(context.Background(), "2030-06-10", 1)
	require.NoError(t, err)
	assert.Len(t, slots, 10)
	assert.Equal(t, 1, f.calendar.BusyCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAuthorization(t *testing.T) {
	f := newTrainingFixture(t)
	start, end := at(10), at(12)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, BookingInput{Start: &start, End: &end})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.Book(ctx, BookingInput{AuthCode: "NOPE", Start: &start, End: &end})
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.Book(ctx, BookingInput{AuthCode: "AUTH-GES", Start: &start, End: &end})
	assertCode(t, err, apperrors.CodeForbidden)

	assert.Empty(t, f.store.Trainings.All())
}

func TestBookRejectsPastAndMalformed(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()

	past := time.Date(2030, 5, 20, 10, 0, 0, 0, bogota)
	pastEnd := past.Add(time.Hour)
	_, err := f.svc.Book(ctx, BookingInput{AuthCode: "AUTH-ENT", Start: &past, End: &pastEnd})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.Book(ctx, BookingInput{AuthCode: "AUTH-ENT", Date: "2030-06-10"})
	assertCode(t, err, apperrors.CodeValidation)

	start, end := at(12), at(10)
	_, err = f.svc.Book(ctx, BookingInput{AuthCode: "AUTH-ENT", Start: &start, End: &end})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestBookKeepsBookingWhenCalendarFails(t *testing.T) {
	f := newTrainingFixture(t)
	f.calendar.CreateErr = errors.New("calendar down")
	start, end := at(14), at(15)

	training, err := f.svc.Book(context.Background(), BookingInput{AuthCode: "AUTH-ENT", Start: &start, End: &end})
	require.NoError(t, err)
	assert.Nil(t, training.CalendarEventID)

	stored := f.store.Trainings.All()
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].CalendarEventID)
}

func TestListTrainings(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Trainings.Create(ctx, &domain.Training{ID: "t-1", StartTime: at(9), EndTime: at(10), EntityID: "ent-1"}))

	list, err := f.svc.ListTrainings(ctx, at(8), at(18))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "clinica", list[0].Entity.Username)

	_, err = f.svc.ListTrainings(ctx, at(18), at(8))
	assertCode(t, err, apperrors.CodeValidation)
}
