package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chore-tracker/internal/codec"
	"chore-tracker/internal/model"
	"chore-tracker/internal/repository"
	"chore-tracker/internal/sentinel"
)

// memStore round-trips through JSON so every Load sees a fresh copy, like
// the encrypted store does.
type memStore struct {
	data    []byte
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) (*model.Document, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return model.NewDocument(), nil
	}
	var doc model.Document
	if err := json.Unmarshal(m.data, &doc); err != nil {
		return nil, err
	}
	doc.Repair()
	return &doc, nil
}

func (m *memStore) Save(_ context.Context, doc *model.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func newTestService(store DocumentStore, opts ...Option) *ChoreService {
	base := []Option{WithClock(func() time.Time { return fixedNow })}
	return NewChoreService(store, append(base, opts...)...)
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	c, err := codec.NewCodec(bytes.Repeat([]byte{0x11}, codec.KeySize))
	require.NoError(t, err)
	store := repository.NewDocumentStore(repository.NewFileBackend(filepath.Join(t.TempDir(), "data.enc")), c)
	svc := newTestService(store)

	created, err := svc.CreateHousehold(ctx, "Smiths")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.HouseholdID)
	assert.Equal(t, int64(1), created.UserID)
	assert.True(t, model.IsShareCode(created.ShareCode))

	joined, err := svc.JoinHousehold(ctx, strings.ToLower(created.ShareCode), "Bob")
	require.NoError(t, err)
	assert.Equal(t, Membership{HouseholdID: 1, UserID: 2}, joined)

	members, err := svc.GetUsers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.User{{ID: 1, Name: "Smiths"}, {ID: 2, Name: "Bob"}}, members.Users)
	assert.Equal(t, created.ShareCode, members.ShareCode)

	cat, err := svc.CreateCategory(ctx, 1, "Laundry", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cat.ID)
	assert.Equal(t, map[int64]int64{1: 0, 2: 0}, cat.TaskCounts)

	task, err := svc.LogTask(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, fixedNow, task.Timestamp)

	cats, err := svc.GetCategories(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, map[int64]int64{1: 0, 2: 1}, cats[0].TaskCounts)

	overall, err := svc.GetOverallCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 0, 2: 2}, overall)

	history, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, HistoryEntry{TaskID: 1, User: "Bob", Category: "Laundry", Time: fixedNow}, history[0])
}

func TestJoinBackfillsExistingCategories(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	svc := newTestService(store)

	created, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, created.HouseholdID, "Dishes", 0)
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, created.HouseholdID, "Vacuum", 3)
	require.NoError(t, err)
	_, err = svc.LogTask(ctx, created.UserID, 1)
	require.NoError(t, err)

	joined, err := svc.JoinHousehold(ctx, created.ShareCode, "Bob")
	require.NoError(t, err)

	cats, err := svc.GetCategories(ctx, created.HouseholdID)
	require.NoError(t, err)
	for _, c := range cats {
		v, ok := c.TaskCounts[joined.UserID]
		assert.True(t, ok, c.Name)
		assert.Zero(t, v, c.Name)
	}
	overall, err := svc.GetOverallCounts(ctx, created.HouseholdID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), overall[joined.UserID])
	assert.Equal(t, int64(1), overall[created.UserID])
}

func TestLogTaskCountingLaw(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&memStore{})

	created, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	bob, err := svc.JoinHousehold(ctx, created.ShareCode, "Bob")
	require.NoError(t, err)
	heavy, err := svc.CreateCategory(ctx, created.HouseholdID, "Garden", 5)
	require.NoError(t, err)
	light, err := svc.CreateCategory(ctx, created.HouseholdID, "Dishes", 1)
	require.NoError(t, err)

	beforeCats, err := svc.GetCategories(ctx, created.HouseholdID)
	require.NoError(t, err)
	beforeOverall, err := svc.GetOverallCounts(ctx, created.HouseholdID)
	require.NoError(t, err)

	_, err = svc.LogTask(ctx, bob.UserID, heavy.ID)
	require.NoError(t, err)

	afterCats, err := svc.GetCategories(ctx, created.HouseholdID)
	require.NoError(t, err)
	afterOverall, err := svc.GetOverallCounts(ctx, created.HouseholdID)
	require.NoError(t, err)

	assert.Equal(t, beforeOverall[bob.UserID]+5, afterOverall[bob.UserID])
	assert.Equal(t, beforeOverall[created.UserID], afterOverall[created.UserID])
	for i := range afterCats {
		for user, count := range afterCats[i].TaskCounts {
			want := beforeCats[i].TaskCounts[user]
			if afterCats[i].ID == heavy.ID && user == bob.UserID {
				want++
			}
			assert.Equal(t, want, count, "category %d user %d", afterCats[i].ID, user)
		}
	}
	assert.NotEqual(t, heavy.ID, light.ID)
}

func TestLogTaskRequiresSameHousehold(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	svc := newTestService(store)

	first, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	second, err := svc.CreateHousehold(ctx, "Cy")
	require.NoError(t, err)
	cat, err := svc.CreateCategory(ctx, second.HouseholdID, "Dishes", 1)
	require.NoError(t, err)
	saves := store.saves

	_, err = svc.LogTask(ctx, first.UserID, cat.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, saves, store.saves)

	_, err = svc.LogTask(ctx, 0, cat.ID)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}

func TestHistoryOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	svc := NewChoreService(&memStore{}, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	created, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	cat, err := svc.CreateCategory(ctx, created.HouseholdID, "Dishes", 1)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		_, err := svc.LogTask(ctx, created.UserID, cat.ID)
		require.NoError(t, err)
	}

	history, err := svc.GetHistory(ctx, created.HouseholdID)
	require.NoError(t, err)
	require.Len(t, history, HistoryLimit)
	assert.Equal(t, int64(25), history[0].TaskID)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i-1].TaskID, history[i].TaskID)
		assert.True(t, history[i-1].Time.After(history[i].Time))
	}
}

func TestHistoryResolvesMissingEntitiesToEmpty(t *testing.T) {
	ctx := context.Background()
	doc := model.NewDocument()
	h := doc.AddHousehold(model.Household{ID: doc.NextHousehold(), ShareCode: "ABCDEF"})
	h.AddUser(model.User{ID: doc.NextUser(), Name: "Ann"})
	h.Tasks = append(h.Tasks, model.Task{ID: doc.NextTask(), UserID: 99, CategoryID: 42, Timestamp: fixedNow})
	store := &memStore{}
	require.NoError(t, store.Save(ctx, doc))

	history, err := newTestService(store).GetHistory(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "", history[0].User)
	assert.Equal(t, "", history[0].Category)
}

func TestCreateCategoryRejectsCaseInsensitiveDuplicate(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	svc := newTestService(store)

	created, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, created.HouseholdID, "Laundry", 2)
	require.NoError(t, err)
	saves := store.saves

	_, err = svc.CreateCategory(ctx, created.HouseholdID, "LAUNDRY", 7)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.Equal(t, saves, store.saves)

	cats, err := svc.GetCategories(ctx, created.HouseholdID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Laundry", cats[0].Name)
	assert.Equal(t, int64(2), cats[0].Weight)

	// Same name in another household is fine.
	other, err := svc.CreateHousehold(ctx, "Cy")
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, other.HouseholdID, "laundry", 1)
	assert.NoError(t, err)
}

func TestCreateCategoryValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&memStore{})
	created, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, created.HouseholdID, "  ", 1)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	_, err = svc.CreateCategory(ctx, created.HouseholdID, "Dishes", -1)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	_, err = svc.CreateCategory(ctx, 0, "Dishes", 1)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	_, err = svc.CreateCategory(ctx, 77, "Dishes", 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	cat, err := svc.CreateCategory(ctx, created.HouseholdID, "Dishes", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cat.Weight)
}

func TestCreateHouseholdValidationAndIDs(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	svc := newTestService(store)

	_, err := svc.CreateHousehold(ctx, "   ")
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	assert.Zero(t, store.saves)

	a, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	b, err := svc.JoinHousehold(ctx, a.ShareCode, "Bob")
	require.NoError(t, err)
	c, err := svc.CreateHousehold(ctx, "Cy")
	require.NoError(t, err)

	assert.Equal(t, int64(2), c.HouseholdID)
	assert.Equal(t, int64(3), c.UserID, "user ids are global across households")
	assert.Equal(t, int64(2), b.UserID)
}

func TestCreateHouseholdRetriesShareCodeCollision(t *testing.T) {
	ctx := context.Background()
	zeros := make([]byte, model.ShareCodeLength)
	ones := bytes.Repeat([]byte{1}, model.ShareCodeLength)
	random := bytes.NewReader(append(append(append([]byte{}, zeros...), zeros...), ones...))
	svc := newTestService(&memStore{}, WithRandom(random))

	first, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.ShareCode)

	second, err := svc.CreateHousehold(ctx, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.ShareCode)
}

func TestCreateHouseholdGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	random := bytes.NewReader(make([]byte, model.ShareCodeLength*(maxShareCodeAttempts+1)))
	store := &memStore{}
	svc := newTestService(store, WithRandom(random))

	_, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	_, err = svc.CreateHousehold(ctx, "Bob")
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.Equal(t, 1, store.saves)
}

func TestJoinHouseholdErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&memStore{})

	_, err := svc.JoinHousehold(ctx, "", "Bob")
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	_, err = svc.JoinHousehold(ctx, "ABCDEF", "")
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	_, err = svc.JoinHousehold(ctx, "ABCDEF", "Bob")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRenameUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&memStore{})
	created, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	other, err := svc.CreateHousehold(ctx, "Cy")
	require.NoError(t, err)

	user, err := svc.RenameUser(ctx, other.UserID, " Cyrus ")
	require.NoError(t, err)
	assert.Equal(t, model.User{ID: other.UserID, Name: "Cyrus"}, user)

	members, err := svc.GetUsers(ctx, other.HouseholdID)
	require.NoError(t, err)
	assert.Equal(t, "Cyrus", members.Users[0].Name)
	members, err = svc.GetUsers(ctx, created.HouseholdID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", members.Users[0].Name)

	_, err = svc.RenameUser(ctx, 99, "x")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = svc.RenameUser(ctx, created.UserID, "")
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}

func TestReadOperationsRequireHousehold(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	svc := newTestService(store)

	_, err := svc.GetUsers(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = svc.GetCategories(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = svc.GetOverallCounts(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = svc.GetHistory(ctx, 0)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	assert.Zero(t, store.saves, "reads never save")
}

func TestLoadAndSaveFailuresSurface(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&memStore{loadErr: sentinel.ErrIntegrity})
	_, err := svc.CreateHousehold(ctx, "Ann")
	assert.ErrorIs(t, err, sentinel.ErrIntegrity)
	assert.Equal(t, "integrity", Outcome(err))

	svc = newTestService(&memStore{saveErr: sentinel.ErrIO})
	_, err = svc.CreateHousehold(ctx, "Ann")
	assert.ErrorIs(t, err, sentinel.ErrIO)

	assert.Equal(t, "error", Outcome(errors.New("boom")))
	assert.Equal(t, "ok", Outcome(nil))
}

func TestConcurrentLogTaskDoesNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&memStore{})
	created, err := svc.CreateHousehold(ctx, "Ann")
	require.NoError(t, err)
	cat, err := svc.CreateCategory(ctx, created.HouseholdID, "Dishes", 2)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LogTask(ctx, created.UserID, cat.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	overall, err := svc.GetOverallCounts(ctx, created.HouseholdID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*2), overall[created.UserID])
	history, err := svc.GetHistory(ctx, created.HouseholdID)
	require.NoError(t, err)
	assert.Len(t, history, HistoryLimit)
	assert.Equal(t, int64(workers), history[0].TaskID)
}
