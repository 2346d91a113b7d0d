package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"ms-registration/internal/catalog"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/registration"
	"ms-registration/internal/registration/db"
	"ms-registration/internal/seating"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, db.CreateSchema(context.Background(), bunDB))
	return &db.DB{Bun: bunDB}
}

func seat(event, row string, column int) seating.SeatKey {
	return seating.SeatKey{EventTitle: event, Row: row, Column: column}
}

func newRegistration(event, email string) *models.Registration {
	return &models.Registration{
		ID:                 uuid.NewString(),
		EventTitle:         event,
		Name:               "Participant",
		RegistrationNumber: "REG" + uuid.NewString()[:8],
		Email:              email,
		Amount:             230,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestTryClaimConcurrentExactlyOneWins(t *testing.T) {
	store := setupTestDB(t)
	key := seat("Standup Night", "E", 3)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		taken     int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			err := store.TryClaim(context.Background(), key, id)

			mu.Lock()
			defer mu.Unlock()
			var seatErr *registration.SeatTakenError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &seatErr):
				taken++
			default:
				other = append(other, err)
			}
		}(fmt.Sprintf("reg-%d", i))
	}
	close(start)
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, taken)

	booked, err := store.ListBooked(context.Background(), "Standup Night")
	require.NoError(t, err)
	assert.Equal(t, []seating.SeatKey{key}, booked)
}

func TestListBookedReflectsClaims(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	booked, err := store.ListBooked(ctx, "Fresh Event")
	require.NoError(t, err)
	assert.Empty(t, booked)

	require.NoError(t, store.TryClaim(ctx, seat("Fresh Event", "B", 7), "r1"))
	require.NoError(t, store.TryClaim(ctx, seat("Other Event", "B", 7), "r2"))

	booked, err = store.ListBooked(ctx, "Fresh Event")
	require.NoError(t, err)
	assert.Equal(t, []seating.SeatKey{seat("Fresh Event", "B", 7)}, booked)
}

func TestScenarioSequentialClaims(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.TryClaim(ctx, seat("E1", "A", 1), "client-a"))

	err := store.TryClaim(ctx, seat("E1", "A", 1), "client-b")
	var taken *registration.SeatTakenError
	require.True(t, errors.As(err, &taken))
	assert.Equal(t, seat("E1", "A", 1), taken.Seat)

	require.NoError(t, store.TryClaim(ctx, seat("E1", "A", 2), "client-b"))

	booked, err := store.ListBooked(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, []seating.SeatKey{seat("E1", "A", 1), seat("E1", "A", 2)}, booked)
}

func TestReleaseIsIdempotentAndOwnerGuarded(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	key := seat("E1", "C", 4)

	require.NoError(t, store.Release(ctx, key, "nobody"))
	require.NoError(t, store.Release(ctx, key, "nobody"))

	require.NoError(t, store.TryClaim(ctx, key, "owner"))
	require.NoError(t, store.Release(ctx, key, "someone-else"))
	booked, err := store.ListBooked(ctx, "E1")
	require.NoError(t, err)
	assert.Len(t, booked, 1)

	require.NoError(t, store.Release(ctx, key, "owner"))
	require.NoError(t, store.Release(ctx, key, "owner"))
	booked, err = store.ListBooked(ctx, "E1")
	require.NoError(t, err)
	assert.Empty(t, booked)

	assert.NoError(t, store.TryClaim(ctx, key, "next"))
}

func TestInsertTranslatesUniqueViolations(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := newRegistration("Standup Night", "a@example.com")
	first.UTRID = "UTR000000000001"
	first.SeatRow, first.SeatColumn = "A", 1
	require.NoError(t, store.Insert(ctx, first))

	sameEmail := newRegistration("Standup Night", "a@example.com")
	err := store.Insert(ctx, sameEmail)
	var dup *registration.DuplicateRegistrationError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "email", dup.Field)

	sameUTR := newRegistration("Standup Night", "b@example.com")
	sameUTR.UTRID = first.UTRID
	err = store.Insert(ctx, sameUTR)
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "utrId", dup.Field)

	sameNumber := newRegistration("Standup Night", "c@example.com")
	sameNumber.RegistrationNumber = first.RegistrationNumber
	err = store.Insert(ctx, sameNumber)
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "registrationNumber", dup.Field)

	sameSeat := newRegistration("Standup Night", "d@example.com")
	sameSeat.SeatRow, sameSeat.SeatColumn = "A", 1
	err = store.Insert(ctx, sameSeat)
	var taken *registration.SeatTakenError
	require.True(t, errors.As(err, &taken), "got %v", err)
	assert.Equal(t, seat("Standup Night", "A", 1), taken.Seat)

	otherEvent := newRegistration("Hackathon", "a@example.com")
	otherEvent.UTRID = first.UTRID
	assert.NoError(t, store.Insert(ctx, otherEvent))
}

func TestSeatlessRegistrationsCoexist(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reg := newRegistration("Meme Contest", fmt.Sprintf("m%d@example.com", i))
		reg.Extra = map[string]string{"memeLink": fmt.Sprintf("https://memes.example.com/%d", i)}
		require.NoError(t, store.Insert(ctx, reg))
	}

	page, total, err := store.List(ctx, "Meme Contest", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)
	assert.False(t, page[0].HasSeat())
	assert.Equal(t, "https://memes.example.com/0", page[0].Extra["memeLink"])

	rest, _, err := store.List(ctx, "Meme Contest", 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestFindDuplicate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	existing := newRegistration("Esports", "squad@example.com")
	existing.UTRID = "UTR111122223333"
	require.NoError(t, store.Insert(ctx, existing))

	candidate := newRegistration("Esports", "fresh@example.com")
	field, err := store.FindDuplicate(ctx, candidate)
	require.NoError(t, err)
	assert.Empty(t, field)

	candidate.UTRID = existing.UTRID
	candidate.RegistrationNumber = existing.RegistrationNumber
	field, err = store.FindDuplicate(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, "utrId", field)

	candidate.Email = existing.Email
	field, err = store.FindDuplicate(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, "email", field)

	candidate.EventTitle = "Podcast"
	field, err = store.FindDuplicate(ctx, candidate)
	require.NoError(t, err)
	assert.Empty(t, field)
}

func TestGetAndSummary(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	reg := newRegistration("Standup Night", "get@example.com")
	reg.Members = []models.Member{{Name: "Friend", RegistrationNumber: "22ABC0001"}}
	require.NoError(t, store.Insert(ctx, reg))
	require.NoError(t, store.Insert(ctx, newRegistration("Standup Night", "second@example.com")))

	got, err := store.Get(ctx, "Standup Night", reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.Email, got.Email)
	assert.Equal(t, reg.Members, got.Members)

	_, err = store.Get(ctx, "Hackathon", reg.ID)
	var nf *registration.NotFoundError
	assert.True(t, errors.As(err, &nf))

	summary, err := store.Summary(ctx, "Standup Night")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Registrations)
	assert.Equal(t, 460.0, summary.AmountTotal)

	empty, err := store.Summary(ctx, "Podcast")
	require.NoError(t, err)
	assert.Zero(t, empty.Registrations)
	assert.Zero(t, empty.AmountTotal)

	all, err := store.ListAll(ctx, "Standup Night")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// failingInsert lets the claim commit and then fails the registration write.
type failingInsert struct {
	*db.DB
}

func (f failingInsert) Insert(context.Context, *models.Registration) error {
	return &registration.StorageError{Op: "insert registration", Err: errors.New("injected failure")}
}

func TestFailedInsertFreesSeat(t *testing.T) {
	store := setupTestDB(t)

	req := models.RegistrationRequest{
		Name:               "Asha",
		RegistrationNumber: "21BCE0001",
		Email:              "asha@example.com",
		Phone:              "9876543210",
		UTRID:              "UTR123456789012",
		Seat:               &models.SeatPosition{Row: "E", Column: 3},
	}

	noProof, err := catalog.Parse([]byte(`
events:
  - title: Standup Night
    paid: true
    requirePhone: true
    seating:
      tiers: {premium: 230}
      rows:
        - {label: E, columns: 20, tier: premium}
`))
	require.NoError(t, err)

	svc := registration.NewService(registration.Dependencies{
		Catalog: noProof,
		Ledger:  store,
		Store:   failingInsert{store},
		Logger:  logger.NewWriterLogger(io.Discard),
	}, registration.Options{})

	_, err = svc.Register(context.Background(), "Standup Night", req, nil)
	var serr *registration.StorageError
	require.True(t, errors.As(err, &serr), "got %v", err)

	booked, err := store.ListBooked(context.Background(), "Standup Night")
	require.NoError(t, err)
	assert.Empty(t, booked)
	assert.NoError(t, store.TryClaim(context.Background(), seat("Standup Night", "E", 3), "retry"))
}
