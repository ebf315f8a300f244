package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"biblequiz/backend/content"
	"biblequiz/backend/models"
	"biblequiz/backend/stats"

	"gorm.io/gorm"
)

// BookStats is the per-book server-side aggregate used by the dashboard.
type BookStats struct {
	BookID         string `json:"bookId"`
	BookName       string `json:"bookName"`
	TotalAttempts  int    `json:"totalAttempts"`
	TotalQuestions int    `json:"totalQuestions"`
	CorrectAnswers int    `json:"correctAnswers"`
	Accuracy       int    `json:"accuracy"`
}

// RemoteAttemptStore keeps attempts in the quiz_attempt_rows table, scoped to
// the owning user on every operation. Reads are self-healing: a stored
// correct_answers of 0 that recomputes to a nonzero value against current
// content is repaired in place during the read.
type RemoteAttemptStore struct {
	db     *gorm.DB
	loader *content.Loader
}

func NewRemoteAttemptStore(db *gorm.DB, loader *content.Loader) *RemoteAttemptStore {
	return &RemoteAttemptStore{db: db, loader: loader}
}

func (s *RemoteAttemptStore) Insert(ctx context.Context, userID uint, attempt models.QuizAttempt) error {
	resultsJSON, err := models.EncodeResults(attempt.Results)
	if err != nil {
		return err
	}
	row := models.QuizAttemptRow{
		ID:             attempt.ID,
		UserID:         userID,
		BookID:         attempt.BookID,
		Book:           attempt.Book,
		ChapterNumber:  attempt.ChapterNumber,
		TotalQuestions: attempt.TotalQuestions,
		CorrectAnswers: attempt.CorrectAnswers,
		ResultsJSON:    resultsJSON,
		Timestamp:      attempt.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RemoteAttemptStore) ListByKey(ctx context.Context, userID uint, bookID string, chapterNumber int) ([]models.QuizAttempt, error) {
	var rows []models.QuizAttemptRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND chapter_number = ?", userID, bookID, chapterNumber).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStoreUnavailable, err)
	}

	attempts := make([]models.QuizAttempt, 0, len(rows))
	for i := range rows {
		s.healRow(ctx, &rows[i])
		attempts = append(attempts, rows[i].ToAttempt())
	}
	return attempts, nil
}

func (s *RemoteAttemptStore) LatestByKey(ctx context.Context, userID uint, bookID string, chapterNumber int) (*models.QuizAttempt, error) {
	attempts, err := s.ListByKey(ctx, userID, bookID, chapterNumber)
	if err != nil {
		return nil, err
	}
	return LatestOf(attempts), nil
}

func (s *RemoteAttemptStore) DeleteByFilter(ctx context.Context, userID uint, f Filter) error {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.BookID != nil {
		query = query.Where("book_id = ?", *f.BookID)
	}
	if f.ChapterNumber != nil {
		query = query.Where("chapter_number = ?", *f.ChapterNumber)
	}
	if err := query.Delete(&models.QuizAttemptRow{}).Error; err != nil {
		return fmt.Errorf("%w: delete: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RemoteAttemptStore) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.QuizAttemptRow{}).
		Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: exists: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

func (s *RemoteAttemptStore) UpsertSyncMarker(ctx context.Context, userID uint, syncedAt time.Time) error {
	var marker models.SyncStatus
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&marker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		marker = models.SyncStatus{UserID: userID, LastSyncedAt: syncedAt}
		if err := s.db.WithContext(ctx).Create(&marker).Error; err != nil {
			return fmt.Errorf("%w: sync marker: %v", ErrStoreUnavailable, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: sync marker: %v", ErrStoreUnavailable, err)
	}
	marker.LastSyncedAt = syncedAt
	if err := s.db.WithContext(ctx).Save(&marker).Error; err != nil {
		return fmt.Errorf("%w: sync marker: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AggregateByBook returns attempt count, question and correct-answer sums per
// book, aggregated server-side.
func (s *RemoteAttemptStore) AggregateByBook(ctx context.Context, userID uint) ([]BookStats, error) {
	var rows []BookStats
	err := s.db.WithContext(ctx).Raw(`
		SELECT book_id,
		       book AS book_name,
		       COUNT(*) AS total_attempts,
		       SUM(total_questions) AS total_questions,
		       SUM(correct_answers) AS correct_answers
		FROM quiz_attempt_rows
		WHERE user_id = ?
		GROUP BY book_id, book
		ORDER BY book_id
	`, userID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate: %v", ErrStoreUnavailable, err)
	}
	for i := range rows {
		if rows[i].TotalQuestions > 0 {
			rows[i].Accuracy = int(float64(rows[i].CorrectAnswers)*100/float64(rows[i].TotalQuestions) + 0.5)
		}
	}
	return rows, nil
}

// ListAllForUser returns every attempt the user has, across books and
// chapters, for streak and dashboard computations.
func (s *RemoteAttemptStore) ListAllForUser(ctx context.Context, userID uint) ([]models.QuizAttempt, error) {
	var rows []models.QuizAttemptRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list all: %v", ErrStoreUnavailable, err)
	}
	attempts := make([]models.QuizAttempt, 0, len(rows))
	for i := range rows {
		attempts = append(attempts, rows[i].ToAttempt())
	}
	return attempts, nil
}

// ListChapterAllUsers returns every user's attempts for one chapter together
// with display names, as input for leaderboard ranking.
func (s *RemoteAttemptStore) ListChapterAllUsers(ctx context.Context, bookID string, chapterNumber int) ([]stats.UserAttempt, error) {
	var flat []struct {
		models.QuizAttemptRow
		Username string
		Image    string
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT q.*, u.username, u.image
		FROM quiz_attempt_rows q
		LEFT JOIN users u ON u.id = q.user_id
		WHERE q.book_id = ? AND q.chapter_number = ?
	`, bookID, chapterNumber).Scan(&flat).Error
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard: %v", ErrStoreUnavailable, err)
	}

	rows := make([]stats.UserAttempt, 0, len(flat))
	for i := range flat {
		rows = append(rows, stats.UserAttempt{
			UserID:    flat[i].UserID,
			UserName:  flat[i].Username,
			UserImage: flat[i].Image,
			Attempt:   flat[i].ToAttempt(),
		})
	}
	return rows, nil
}

// healRow repairs a stale cached correct-answer count as a side effect of the
// read. Needed at most once per stale row; a failed content lookup leaves the
// row as stored.
func (s *RemoteAttemptStore) healRow(ctx context.Context, row *models.QuizAttemptRow) {
	if row.CorrectAnswers != 0 {
		return
	}
	data, err := s.loader.LoadChapter(row.BookID, row.ChapterNumber, "")
	if err != nil {
		return
	}
	recomputed := stats.CorrectCount(row.ToAttempt(), data)
	if recomputed == 0 {
		return
	}
	if err := s.db.WithContext(ctx).Model(&models.QuizAttemptRow{}).
		Where("id = ?", row.ID).
		Update("correct_answers", recomputed).Error; err != nil {
		return
	}
	row.CorrectAnswers = recomputed
}
