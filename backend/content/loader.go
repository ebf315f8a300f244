package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"biblequiz/backend/models"
)

// ErrContentNotFound reports a book/chapter/locale combination with no backing
// content file. Callers render a placeholder chapter instead of failing.
var ErrContentNotFound = errors.New("quiz content not found")

// Loader reads quiz content from a directory of static JSON files laid out as
// <dataDir>/<locale>/<bookId>/<chapter>.json. Content is read-only; the rest
// of the backend never constructs questions.
type Loader struct {
	dataDir       string
	defaultLocale string
}

func NewLoader(dataDir, defaultLocale string) *Loader {
	return &Loader{dataDir: dataDir, defaultLocale: defaultLocale}
}

// LoadChapter loads one chapter's quiz data. On a missing or unreadable file it
// returns a placeholder QuizData alongside ErrContentNotFound.
func (l *Loader) LoadChapter(bookID string, chapterNumber int, locale string) (models.QuizData, error) {
	if locale == "" {
		locale = l.defaultLocale
	}

	path := filepath.Join(l.dataDir, locale, bookID, strconv.Itoa(chapterNumber)+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return l.placeholder(chapterNumber), fmt.Errorf("%w: %s chapter %d (%s)", ErrContentNotFound, bookID, chapterNumber, locale)
	}

	var data models.QuizData
	if err := json.Unmarshal(raw, &data); err != nil {
		return l.placeholder(chapterNumber), fmt.Errorf("%w: %s chapter %d: %v", ErrContentNotFound, bookID, chapterNumber, err)
	}
	return data, nil
}

// AvailableBooks scans the locale directory and returns every book with its
// chapters, ordered by chapter number.
func (l *Loader) AvailableBooks(locale string) ([]models.BookInfo, error) {
	if locale == "" {
		locale = l.defaultLocale
	}

	localeDir := filepath.Join(l.dataDir, locale)
	entries, err := os.ReadDir(localeDir)
	if err != nil {
		return []models.BookInfo{}, fmt.Errorf("%w: locale %s", ErrContentNotFound, locale)
	}

	books := make([]models.BookInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		book, err := l.loadBook(localeDir, entry.Name())
		if err != nil {
			continue
		}
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (l *Loader) BookByID(bookID, locale string) (models.BookInfo, error) {
	books, err := l.AvailableBooks(locale)
	if err != nil {
		return models.BookInfo{}, err
	}
	for _, book := range books {
		if book.ID == bookID {
			return book, nil
		}
	}
	return models.BookInfo{}, fmt.Errorf("%w: book %s", ErrContentNotFound, bookID)
}

func (l *Loader) loadBook(localeDir, bookID string) (models.BookInfo, error) {
	bookDir := filepath.Join(localeDir, bookID)
	files, err := os.ReadDir(bookDir)
	if err != nil {
		return models.BookInfo{}, err
	}

	chapterNumbers := make([]int, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		chapterNumbers = append(chapterNumbers, num)
	}
	if len(chapterNumbers) == 0 {
		return models.BookInfo{ID: bookID, Name: bookID, Chapters: []models.ChapterInfo{}}, nil
	}
	sort.Ints(chapterNumbers)

	book := models.BookInfo{ID: bookID, Chapters: make([]models.ChapterInfo, 0, len(chapterNumbers))}
	for i, num := range chapterNumbers {
		raw, err := os.ReadFile(filepath.Join(bookDir, strconv.Itoa(num)+".json"))
		if err != nil {
			continue
		}
		var data models.QuizData
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}
		if i == 0 {
			// The display name lives inside the chapter files.
			book.Name = data.Book
		}
		book.Chapters = append(book.Chapters, models.ChapterInfo{
			Number:        num,
			Description:   data.Description,
			QuestionCount: len(data.Questions),
		})
	}
	if book.Name == "" {
		book.Name = bookID
	}
	return book, nil
}

func (l *Loader) placeholder(chapterNumber int) models.QuizData {
	return models.QuizData{
		Book:        "Error Loading Data",
		Chapter:     chapterNumber,
		Questions:   []models.QuizQuestion{},
		Description: "There was an error loading the quiz data. Please try again later.",
	}
}
