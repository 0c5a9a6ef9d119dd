package app

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"

	"trivia-night-service/internal/domain"
	"trivia-night-service/internal/logger"
	"trivia-night-service/internal/quizformat"
)

// EditorService manages stored quiz content.
type EditorService struct {
	store QuizStore
	cache QuizRepository
	log   logger.Logger
}

// NewEditorService wires the editor to its store. cache may be nil; when set
// it is invalidated after every write so the host never loads stale content.
func NewEditorService(store QuizStore, cache QuizRepository, log logger.Logger) *EditorService {
	return &EditorService{store: store, cache: cache, log: log}
}

func (s *EditorService) List(ctx context.Context) ([]domain.QuizSummary, error) {
	return s.store.ListQuizzes(ctx)
}

func (s *EditorService) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.store.LoadQuiz(ctx, quizID)
}

// Create stores a new quiz holding one sample question.
func (s *EditorService) Create(ctx context.Context, title string) (domain.Quiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Quiz"
	}
	quiz := domain.Quiz{
		ID:    uuid.NewString(),
		Title: title,
		Items: []domain.Item{domain.NewQuestion(domain.Question{
			Text:         "Sample question?",
			QuestionType: domain.QuestionMC,
			Options:      []string{"A) Option A", "B) Option B", "C) Option C", "D) Option D"},
			Answer:       "A) Option A",
			Timer:        30,
		})},
	}
	return s.save(ctx, quiz)
}

// Save validates and persists quiz, renumbering its items.
func (s *EditorService) Save(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if strings.TrimSpace(quiz.ID) == "" {
		return domain.Quiz{}, domain.Validationf("id", "must not be empty")
	}
	if strings.TrimSpace(quiz.Title) == "" {
		return domain.Quiz{}, domain.Validationf("title", "please enter a quiz title")
	}
	if err := validateItems(quiz.Items); err != nil {
		return domain.Quiz{}, err
	}
	return s.save(ctx, quiz)
}

// Delete removes a quiz after confirmation.
func (s *EditorService) Delete(ctx context.Context, confirm Confirmer, quizID string) error {
	if confirm == nil || !confirm.Confirm(ctx, "Delete this quiz? This cannot be undone.") {
		return domain.ErrNotConfirmed
	}
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.invalidate(ctx, quizID)
	s.log.Info("quiz deleted", "quiz", quizID)
	return nil
}

// Import stores a quiz from a JSON file in either accepted shape. name is
// the file name; without a title in the file it becomes the quiz title.
func (s *EditorService) Import(ctx context.Context, name string, raw []byte) (domain.Quiz, error) {
	items, err := quizformat.Normalize(raw)
	if err != nil {
		return domain.Quiz{}, err
	}
	title := quizformat.Title(raw, items)
	if title == "" {
		title = strings.TrimSuffix(path.Base(name), ".json")
	}
	if title == "" || title == "." || title == "/" {
		title = "Imported Quiz"
	}
	return s.save(ctx, domain.Quiz{ID: uuid.NewString(), Title: title, Items: items})
}

// Export returns a stored quiz in the nested authoring form.
func (s *EditorService) Export(ctx context.Context, quizID string) (quizformat.EditorQuiz, error) {
	quiz, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return quizformat.EditorQuiz{}, err
	}
	out := quizformat.ToEditorQuiz(quiz.Items, quiz.Title)
	out.Title = quiz.Title
	return out, nil
}

func (s *EditorService) save(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	quiz.Items = quizformat.PrepareForSave(quiz.Items)
	saved, err := s.store.SaveQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, &domain.WriteFailure{Op: "save quiz", Err: err}
	}
	s.invalidate(ctx, saved.ID)
	s.log.Info("quiz saved", "quiz", saved.ID, "items", len(saved.Items))
	return saved, nil
}

func (s *EditorService) invalidate(ctx context.Context, quizID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, quizID); err != nil {
		s.log.Warn("quiz cache invalidation failed", "quiz", quizID, "error", err)
	}
}

func validateItems(items []domain.Item) error {
	var errs []error
	for i, item := range items {
		q, ok := item.Question()
		if !ok {
			continue
		}
		if strings.TrimSpace(q.Text) == "" {
			errs = append(errs, domain.Validationf("items", "item %d: question text is empty", i+1))
		}
		if strings.TrimSpace(q.Answer) == "" {
			errs = append(errs, domain.Validationf("items", "item %d: answer is empty", i+1))
		}
		if q.QuestionType == domain.QuestionMC && !contains(q.Options, q.Answer) {
			errs = append(errs, domain.Validationf("items", "item %d: answer is not one of the options", i+1))
		}
	}
	return errors.Join(errs...)
}
