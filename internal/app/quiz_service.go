package app

import (
	"context"
	"fmt"

	"quiz-attempt-service/internal/domain"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"
)

// QuizInput is the authoring payload for a new quiz.
type QuizInput struct {
	Title            string          `json:"title" validate:"required"`
	Description      string          `json:"description"`
	Date             string          `json:"date"`
	TimeLimitMinutes int             `json:"timeLimitMinutes" validate:"min=0"`
	Questions        []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

type QuestionInput struct {
	Text           string        `json:"text" validate:"required"`
	Options        []OptionInput `json:"options" validate:"required,min=2,dive"`
	CorrectOptions []int         `json:"correctOptions" validate:"required,min=1"`
	// Points defaults to 1 when omitted.
	Points int    `json:"points" validate:"omitempty,min=1"`
	Image  string `json:"image"`
}

type OptionInput struct {
	Text string `json:"text" validate:"required"`
}

// QuizService covers quiz authoring and quiz reads.
type QuizService struct {
	quizzes QuizStore
	log     zerolog.Logger
	rt      runtime
}

func NewQuizService(quizzes QuizStore, logger zerolog.Logger, opts ...Option) *QuizService {
	return &QuizService{quizzes: quizzes, log: logger, rt: newRuntime(opts)}
}

// List returns the quizzes the caller created plus every published quiz, newest first.
func (s *QuizService) List(ctx context.Context, principal domain.Principal) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.ListVisibleQuizzes(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return RedactAll(quizzes, principal), nil
}

// Get returns one quiz with the answer key hidden unless the caller may see it.
func (s *QuizService) Get(ctx context.Context, principal domain.Principal, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.FindQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return Redact(quiz, principal), nil
}

// Create validates and stores a new, unpublished quiz owned by the caller.
func (s *QuizService) Create(ctx context.Context, principal domain.Principal, input QuizInput) (domain.Quiz, error) {
	if err := Authorize(principal, domain.RoleInstructor, domain.RoleAdmin); err != nil {
		return domain.Quiz{}, err
	}
	if err := validateStruct(input); err != nil {
		return domain.Quiz{}, err
	}
	for i, q := range input.Questions {
		for _, idx := range q.CorrectOptions {
			if idx < 0 || idx >= len(q.Options) {
				return domain.Quiz{}, domain.Validationf("questions[%d].correctOptions: index %d out of range", i, idx)
			}
		}
	}

	var quiz domain.Quiz
	if err := copier.Copy(&quiz, &input); err != nil {
		return domain.Quiz{}, fmt.Errorf("map quiz input: %w", err)
	}
	for i := range quiz.Questions {
		quiz.Questions[i].CorrectOptions = normalize(quiz.Questions[i].CorrectOptions)
		if quiz.Questions[i].Points == 0 {
			quiz.Questions[i].Points = 1
		}
	}
	quiz.ID = s.rt.newID()
	quiz.CreatorID = principal.UserID
	quiz.IsPublished = false
	quiz.CreatedAt = s.rt.now().UTC()

	if err := s.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	s.log.Info().Str("quiz_id", quiz.ID).Str("creator", quiz.CreatorID).Int("questions", len(quiz.Questions)).Msg("quiz created")
	return quiz, nil
}

// Publish makes a quiz attemptable. Only its creator may publish; publishing twice is a no-op.
func (s *QuizService) Publish(ctx context.Context, principal domain.Principal, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.FindQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !quiz.OwnedBy(principal.UserID) {
		return domain.Quiz{}, domain.ErrNotQuizOwner
	}
	if quiz.IsPublished {
		return quiz, nil
	}
	if err := s.quizzes.PublishQuiz(ctx, quizID); err != nil {
		return domain.Quiz{}, fmt.Errorf("publish quiz: %w", err)
	}
	quiz.IsPublished = true
	s.log.Info().Str("quiz_id", quizID).Msg("quiz published")
	return quiz, nil
}
