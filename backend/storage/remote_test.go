package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"biblequiz/backend/content"
	"biblequiz/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.QuizAttemptRow{},
		&models.SyncStatus{},
	))
	return db
}

func newTestRemote(t *testing.T) (*RemoteAttemptStore, *gorm.DB) {
	t.Helper()

	dataDir := t.TempDir()
	chapterDir := filepath.Join(dataDir, "en", "genesis")
	require.NoError(t, os.MkdirAll(chapterDir, 0o755))
	chapter := `{
		"book": "Genesis",
		"chapter": 1,
		"questions": [
			{"id": 1, "question": "q1", "options": ["a", "b"], "correctAnswer": 0},
			{"id": 2, "question": "q2", "options": ["a", "b"], "correctAnswer": 1}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(chapterDir, "1.json"), []byte(chapter), 0o644))

	db := newTestDB(t)
	return NewRemoteAttemptStore(db, content.NewLoader(dataDir, "en")), db
}

func remoteAttempt(id string, correct int, results []models.QuizResult, ts int64) models.QuizAttempt {
	return models.QuizAttempt{
		ID:             id,
		BookID:         "genesis",
		Book:           "Genesis",
		ChapterNumber:  1,
		TotalQuestions: 2,
		CorrectAnswers: correct,
		Results:        results,
		Timestamp:      ts,
	}
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRemote(t)

	answer := 0
	a := remoteAttempt("genesis_1_100", 1, []models.QuizResult{{QuestionID: 1, UserAnswer: &answer}}, 100)
	require.NoError(t, store.Insert(ctx, 1, a))

	attempts, err := store.ListByKey(ctx, 1, "genesis", 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, a.ID, attempts[0].ID)
	require.Len(t, attempts[0].Results, 1)
	assert.Equal(t, 0, *attempts[0].Results[0].UserAnswer)

	// Another user sees nothing.
	attempts, err = store.ListByKey(ctx, 2, "genesis", 1)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	exists, err := store.ExistsByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.ExistsByID(ctx, "genesis_1_999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRemoteStoreHealsStaleCorrectCount(t *testing.T) {
	ctx := context.Background()
	store, db := newTestRemote(t)

	// Stored with a zero count although both answers match current content.
	right1, right2 := 0, 1
	stale := remoteAttempt("genesis_1_100", 0, []models.QuizResult{
		{QuestionID: 1, UserAnswer: &right1},
		{QuestionID: 2, UserAnswer: &right2},
	}, 100)
	require.NoError(t, store.Insert(ctx, 1, stale))

	attempts, err := store.ListByKey(ctx, 1, "genesis", 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 2, attempts[0].CorrectAnswers)

	// The repair is persisted, not just applied to the response.
	var row models.QuizAttemptRow
	require.NoError(t, db.First(&row, "id = ?", stale.ID).Error)
	assert.Equal(t, 2, row.CorrectAnswers)
}

func TestRemoteStoreHealLeavesGenuineZero(t *testing.T) {
	ctx := context.Background()
	store, db := newTestRemote(t)

	wrong := 1
	allWrong := remoteAttempt("genesis_1_100", 0, []models.QuizResult{
		{QuestionID: 1, UserAnswer: &wrong},
	}, 100)
	require.NoError(t, store.Insert(ctx, 1, allWrong))

	// A chapter with no content file cannot be recomputed; stored values stay.
	missing := remoteAttempt("judges_3_200", 0, nil, 200)
	missing.BookID = "judges"
	missing.Book = "Judges"
	missing.ChapterNumber = 3
	require.NoError(t, store.Insert(ctx, 1, missing))

	attempts, err := store.ListByKey(ctx, 1, "genesis", 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 0, attempts[0].CorrectAnswers)

	attempts, err = store.ListByKey(ctx, 1, "judges", 3)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 0, attempts[0].CorrectAnswers)

	var row models.QuizAttemptRow
	require.NoError(t, db.First(&row, "id = ?", allWrong.ID).Error)
	assert.Equal(t, 0, row.CorrectAnswers)
}

func TestRemoteStoreLatestByKey(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRemote(t)

	require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_100", 1, nil, 100)))
	require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_300", 2, nil, 300)))
	require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_200", 1, nil, 200)))

	latest, err := store.LatestByKey(ctx, 1, "genesis", 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "genesis_1_300", latest.ID)
}

func TestRemoteStoreDeleteByFilter(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *RemoteAttemptStore {
		store, _ := newTestRemote(t)
		require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_100", 1, nil, 100)))
		exodus := remoteAttempt("exodus_2_101", 1, nil, 101)
		exodus.BookID = "exodus"
		exodus.ChapterNumber = 2
		require.NoError(t, store.Insert(ctx, 1, exodus))
		other := remoteAttempt("genesis_1_102", 1, nil, 102)
		require.NoError(t, store.Insert(ctx, 2, other))
		return store
	}

	t.Run("everything for one user", func(t *testing.T) {
		store := seed(t)
		require.NoError(t, store.DeleteByFilter(ctx, 1, Filter{}))

		attempts, err := store.ListByKey(ctx, 1, "genesis", 1)
		require.NoError(t, err)
		assert.Empty(t, attempts)

		// The other user's rows are untouched.
		attempts, err = store.ListByKey(ctx, 2, "genesis", 1)
		require.NoError(t, err)
		assert.Len(t, attempts, 1)
	})

	t.Run("single chapter", func(t *testing.T) {
		store := seed(t)
		book := "genesis"
		chapter := 1
		require.NoError(t, store.DeleteByFilter(ctx, 1, Filter{BookID: &book, ChapterNumber: &chapter}))

		attempts, err := store.ListByKey(ctx, 1, "exodus", 2)
		require.NoError(t, err)
		assert.Len(t, attempts, 1)
	})
}

func TestRemoteStoreUpsertSyncMarker(t *testing.T) {
	ctx := context.Background()
	store, db := newTestRemote(t)

	first := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertSyncMarker(ctx, 1, first))

	second := first.Add(24 * time.Hour)
	require.NoError(t, store.UpsertSyncMarker(ctx, 1, second))

	// One row per user, carrying the newest time.
	var count int64
	require.NoError(t, db.Model(&models.SyncStatus{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var marker models.SyncStatus
	require.NoError(t, db.First(&marker, "user_id = ?", 1).Error)
	assert.True(t, marker.LastSyncedAt.Equal(second))
}

func TestRemoteStoreAggregateByBook(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRemote(t)

	require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_100", 1, nil, 100)))
	require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_200", 2, nil, 200)))
	exodus := remoteAttempt("exodus_2_300", 2, nil, 300)
	exodus.BookID = "exodus"
	exodus.Book = "Exodus"
	exodus.ChapterNumber = 2
	require.NoError(t, store.Insert(ctx, 1, exodus))

	bookStats, err := store.AggregateByBook(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bookStats, 2)

	assert.Equal(t, "exodus", bookStats[0].BookID)
	assert.Equal(t, 1, bookStats[0].TotalAttempts)
	assert.Equal(t, 100, bookStats[0].Accuracy)

	assert.Equal(t, "genesis", bookStats[1].BookID)
	assert.Equal(t, "Genesis", bookStats[1].BookName)
	assert.Equal(t, 2, bookStats[1].TotalAttempts)
	assert.Equal(t, 4, bookStats[1].TotalQuestions)
	assert.Equal(t, 3, bookStats[1].CorrectAnswers)
	assert.Equal(t, 75, bookStats[1].Accuracy)
}

func TestRemoteStoreListAllForUser(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRemote(t)

	require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_100", 1, nil, 100)))
	require.NoError(t, store.Insert(ctx, 1, remoteAttempt("genesis_1_300", 2, nil, 300)))
	require.NoError(t, store.Insert(ctx, 2, remoteAttempt("genesis_1_200", 1, nil, 200)))

	attempts, err := store.ListAllForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	// Newest first.
	assert.Equal(t, "genesis_1_300", attempts[0].ID)
	assert.Equal(t, "genesis_1_100", attempts[1].ID)
}

func TestRemoteStoreListChapterAllUsers(t *testing.T) {
	ctx := context.Background()
	store, db := newTestRemote(t)

	alice := models.User{Username: "alice", Image: "alice.png"}
	require.NoError(t, db.Create(&alice).Error)

	require.NoError(t, store.Insert(ctx, alice.ID, remoteAttempt("genesis_1_100", 2, nil, 100)))
	// An attempt whose user row no longer exists still shows up, unnamed.
	require.NoError(t, store.Insert(ctx, 999, remoteAttempt("genesis_1_200", 1, nil, 200)))

	rows, err := store.ListChapterAllUsers(ctx, "genesis", 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byUser := map[uint]string{}
	for _, row := range rows {
		byUser[row.UserID] = row.UserName
	}
	assert.Equal(t, "alice", byUser[alice.ID])
	assert.Equal(t, "", byUser[999])
}
