package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/exam-portal/exam-service/internal/events"
	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/validator"
)

func mcqQuestion() *models.Question {
	return &models.Question{
		ID:       10,
		Type:     models.MultipleChoice,
		MaxScore: 4,
		Choices: []models.Choice{
			{ID: 101, QuestionID: 10, Text: "Red"},
			{ID: 102, QuestionID: 10, Text: "Blue", IsCorrect: true},
			{ID: 103, QuestionID: 10, Text: "Green"},
		},
	}
}

func TestEvaluateChoice(t *testing.T) {
	tests := []struct {
		name        string
		selected    *uint
		wantMatched bool
		wantScore   float64
	}{
		{name: "correct choice gets full marks", selected: uintPtr(102), wantMatched: true, wantScore: 4},
		{name: "wrong choice gets zero", selected: uintPtr(101), wantMatched: false, wantScore: 0},
		{name: "no selection gets zero", selected: nil, wantMatched: false, wantScore: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := &models.Answer{QuestionID: 10, SelectedChoiceID: tt.selected}
			verdict := evaluateAnswer(answer, mcqQuestion())

			if !verdict.graded {
				t.Fatal("expected a graded verdict")
			}
			if !verdict.logged {
				t.Error("choice grading should always leave a log")
			}
			if verdict.matched != tt.wantMatched {
				t.Errorf("matched = %v, want %v", verdict.matched, tt.wantMatched)
			}
			if verdict.score != tt.wantScore {
				t.Errorf("score = %v, want %v", verdict.score, tt.wantScore)
			}
		})
	}
}

func TestEvaluateShortAnswer(t *testing.T) {
	tests := []struct {
		name        string
		pattern     *string
		text        *string
		wantGraded  bool
		wantMatched bool
		wantLogged  bool
	}{
		{
			name:        "exact match",
			pattern:     strPtr("paris"),
			text:        strPtr("paris"),
			wantGraded:  true,
			wantMatched: true,
			wantLogged:  true,
		},
		{
			name:        "case insensitive",
			pattern:     strPtr("paris"),
			text:        strPtr("PARIS"),
			wantGraded:  true,
			wantMatched: true,
			wantLogged:  true,
		},
		{
			name:        "surrounding whitespace trimmed",
			pattern:     strPtr("2"),
			text:        strPtr("  2  "),
			wantGraded:  true,
			wantMatched: true,
			wantLogged:  true,
		},
		{
			name:        "alternation matches localized digits",
			pattern:     strPtr("2|۲|دو"),
			text:        strPtr("۲"),
			wantGraded:  true,
			wantMatched: true,
			wantLogged:  true,
		},
		{
			name:        "alternation rejects other values",
			pattern:     strPtr("2|۲|دو"),
			text:        strPtr("3"),
			wantGraded:  true,
			wantMatched: false,
			wantLogged:  true,
		},
		{
			name:        "partial match is not a match",
			pattern:     strPtr("cat"),
			text:        strPtr("catalog"),
			wantGraded:  true,
			wantMatched: false,
			wantLogged:  true,
		},
		{
			name:        "nil answer text evaluates as empty",
			pattern:     strPtr("paris"),
			text:        nil,
			wantGraded:  true,
			wantMatched: false,
			wantLogged:  true,
		},
		{
			name:       "no pattern goes to manual review without a log",
			pattern:    nil,
			text:       strPtr("anything"),
			wantGraded: false,
			wantLogged: false,
		},
		{
			name:       "malformed pattern goes to manual review without a log",
			pattern:    strPtr("("),
			text:       strPtr("anything"),
			wantGraded: false,
			wantLogged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := &models.Question{
				ID:               20,
				Type:             models.ShortAnswer,
				MaxScore:         3,
				AutoGradePattern: tt.pattern,
			}
			answer := &models.Answer{QuestionID: 20, TextAnswer: tt.text}

			verdict := evaluateAnswer(answer, question)

			if verdict.graded != tt.wantGraded {
				t.Errorf("graded = %v, want %v", verdict.graded, tt.wantGraded)
			}
			if verdict.logged != tt.wantLogged {
				t.Errorf("logged = %v, want %v", verdict.logged, tt.wantLogged)
			}
			if verdict.matched != tt.wantMatched {
				t.Errorf("matched = %v, want %v", verdict.matched, tt.wantMatched)
			}
			if tt.wantMatched && verdict.score != question.MaxScore {
				t.Errorf("score = %v, want %v", verdict.score, question.MaxScore)
			}
			if !tt.wantMatched && verdict.score != 0 {
				t.Errorf("score = %v, want 0", verdict.score)
			}
		})
	}
}

func TestEvaluateAnswerFileUpload(t *testing.T) {
	question := &models.Question{ID: 30, Type: models.FileUpload, MaxScore: 10}
	answer := &models.Answer{QuestionID: 30, UploadedFile: strPtr("essays/1.pdf")}

	verdict := evaluateAnswer(answer, question)

	if verdict.graded {
		t.Error("file uploads must not be auto-graded")
	}
	if verdict.logged {
		t.Error("file uploads must not leave a grader log")
	}
}

func TestFinalizeAttempt(t *testing.T) {
	tests := []struct {
		name             string
		status           models.AttemptStatus
		allScored        bool
		sum              float64
		wantTransitioned bool
		wantStatus       models.AttemptStatus
		wantTotal        *float64
	}{
		{
			name:             "submitted attempt transitions to graded",
			status:           models.AttemptSubmitted,
			allScored:        true,
			sum:              12,
			wantTransitioned: true,
			wantStatus:       models.AttemptGraded,
			wantTotal:        floatPtr(12),
		},
		{
			name:             "re-grade recomputes without transitioning",
			status:           models.AttemptGraded,
			allScored:        true,
			sum:              14,
			wantTransitioned: false,
			wantStatus:       models.AttemptGraded,
			wantTotal:        floatPtr(14),
		},
		{
			name:             "unscored answers leave the attempt alone",
			status:           models.AttemptSubmitted,
			allScored:        false,
			wantTransitioned: false,
			wantStatus:       models.AttemptSubmitted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := &stubAttemptRepo{}
			repo := &stubRepo{
				answers:  &stubAnswerRepo{allScored: tt.allScored, sum: tt.sum},
				attempts: attempts,
			}
			svc := &gradingService{repo: repo, logger: testLogger()}

			attempt := &models.ExamAttempt{ID: 1, ExamID: 2, StudentID: "s-1", Status: tt.status}
			transitioned, total, err := svc.finalizeAttempt(context.Background(), repo, attempt)
			if err != nil {
				t.Fatalf("finalizeAttempt failed: %v", err)
			}

			if transitioned != tt.wantTransitioned {
				t.Errorf("transitioned = %v, want %v", transitioned, tt.wantTransitioned)
			}
			if attempt.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", attempt.Status, tt.wantStatus)
			}

			if tt.wantTotal == nil {
				if attempt.TotalScore != nil {
					t.Errorf("total score = %v, want nil", *attempt.TotalScore)
				}
				if len(attempts.updated) != 0 {
					t.Errorf("expected no attempt update, got %d", len(attempts.updated))
				}
				return
			}

			if total != *tt.wantTotal {
				t.Errorf("total = %v, want %v", total, *tt.wantTotal)
			}
			if attempt.TotalScore == nil || *attempt.TotalScore != *tt.wantTotal {
				t.Errorf("attempt total score = %v, want %v", attempt.TotalScore, *tt.wantTotal)
			}
			if len(attempts.updated) != 1 {
				t.Errorf("expected exactly one attempt update, got %d", len(attempts.updated))
			}
		})
	}
}

// gradingFixture wires a full stub repository around one submitted
// attempt with a single MCQ answer, graded by an admin.
func gradingFixture() (*stubRepo, *events.MockEventPublisher, *gradingService) {
	question := mcqQuestion()
	answer := &models.Answer{ID: 5, AttemptID: 1, QuestionID: question.ID, Question: *question}
	attempt := &models.ExamAttempt{ID: 1, ExamID: 2, StudentID: "s-1", Status: models.AttemptSubmitted}

	repo := &stubRepo{}
	repo.answers = &stubAnswerRepo{repo: repo, byID: map[uint]*models.Answer{answer.ID: answer}, allScored: true, sum: 3}
	repo.attempts = &stubAttemptRepo{repo: repo, attempt: attempt}
	repo.exams = &stubExamRepo{exam: &models.Exam{ID: 2, Title: "Algebra I", TotalScore: 20}}
	repo.users = &stubUserRepo{user: &models.User{ID: "t-1", Role: models.RoleAdmin}}
	repo.questions = &stubQuestionRepo{question: question}
	repo.reviews = &stubReviewRepo{repo: repo}
	repo.notifications = &stubNotificationRepo{}

	publisher := events.NewMockEventPublisher(testLogger())
	notifier := NewNotificationService(repo, publisher, testLogger(), "exam-events")
	svc := &gradingService{
		repo:      repo,
		logger:    testLogger(),
		validator: validator.New(),
		notifier:  notifier,
	}
	return repo, publisher, svc
}

func TestGradeAnswerWritesInsideOneTransaction(t *testing.T) {
	repo, publisher, svc := gradingFixture()

	req := &ManualGradeRequest{AnswerID: 5, Score: 3}
	if err := svc.GradeAnswer(context.Background(), req, "t-1"); err != nil {
		t.Fatalf("GradeAnswer failed: %v", err)
	}

	if repo.txCount != 1 {
		t.Errorf("transactions = %d, want 1", repo.txCount)
	}

	// Review upsert, answer write-back and attempt aggregation must all
	// land inside that transaction.
	if repo.reviews.creates != 1 || !repo.reviews.createdTx[0] {
		t.Errorf("review create in tx = %v, want one in-transaction create", repo.reviews.createdTx)
	}
	for i, inTx := range repo.answers.updatedTx {
		if !inTx {
			t.Errorf("answer update %d happened outside the transaction", i)
		}
	}
	if len(repo.attempts.updatedTx) != 1 || !repo.attempts.updatedTx[0] {
		t.Errorf("attempt update in tx = %v, want one in-transaction update", repo.attempts.updatedTx)
	}

	if repo.attempts.attempt.Status != models.AttemptGraded {
		t.Errorf("status = %v, want %v", repo.attempts.attempt.Status, models.AttemptGraded)
	}
	if got := len(publisher.GetPublishedEvents()); got != 1 {
		t.Errorf("published events = %d, want 1", got)
	}
}

func TestGradeAnswerRegradeOverwritesReview(t *testing.T) {
	repo, publisher, svc := gradingFixture()

	first := &ManualGradeRequest{AnswerID: 5, Score: 3, Comments: strPtr("partial credit")}
	if err := svc.GradeAnswer(context.Background(), first, "t-1"); err != nil {
		t.Fatalf("first GradeAnswer failed: %v", err)
	}

	second := &ManualGradeRequest{AnswerID: 5, Score: 2}
	if err := svc.GradeAnswer(context.Background(), second, "t-1"); err != nil {
		t.Fatalf("second GradeAnswer failed: %v", err)
	}

	// One review per answer: the re-grade updates the existing row
	// instead of inserting a second one.
	if repo.reviews.creates != 1 {
		t.Errorf("review creates = %d, want 1", repo.reviews.creates)
	}
	if repo.reviews.updates != 1 {
		t.Errorf("review updates = %d, want 1", repo.reviews.updates)
	}
	if repo.reviews.review.Score != 2 {
		t.Errorf("review score = %v, want 2", repo.reviews.review.Score)
	}

	answer := repo.answers.byID[5]
	if answer.Score == nil || *answer.Score != 2 {
		t.Errorf("answer score = %v, want 2", answer.Score)
	}

	// The graded transition fired on the first call only, so exactly
	// one score notification goes out.
	if got := len(publisher.GetPublishedEvents()); got != 1 {
		t.Errorf("published events = %d, want 1", got)
	}
}

func TestAutoGradeAttemptSurfacesPanicAsError(t *testing.T) {
	repo, _, svc := gradingFixture()
	repo.answers.panicOnGetByAttempt = "assignment to entry in nil map"

	result, err := svc.AutoGradeAttempt(context.Background(), 1, "t-1")
	if err == nil {
		t.Fatal("expected an error after a panic in the grading loop")
	}
	if !strings.Contains(err.Error(), "panicked") {
		t.Errorf("error = %q, want it to report the panic", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
}

func TestPublishScoreSwallowsFailures(t *testing.T) {
	publisher := events.NewMockEventPublisher(testLogger())
	publisher.FailNext = errors.New("broker down")

	notifications := &stubNotificationRepo{}
	repo := &stubRepo{
		exams:         &stubExamRepo{exam: &models.Exam{ID: 2, Title: "Algebra I", TotalScore: 20}},
		notifications: notifications,
	}
	notifier := NewNotificationService(repo, publisher, testLogger(), "exam-events")
	svc := &gradingService{repo: repo, logger: testLogger(), notifier: notifier}

	attempt := &models.ExamAttempt{ID: 1, ExamID: 2, StudentID: "s-1", Status: models.AttemptGraded}
	svc.publishScore(context.Background(), attempt, 12)

	// The failure is logged but the notification row is still persisted,
	// unsent.
	if len(notifications.created) != 1 {
		t.Fatalf("expected one persisted notification, got %d", len(notifications.created))
	}
	if notifications.created[0].SentAt != nil {
		t.Error("failed publish must leave SentAt unset")
	}
}

func floatPtr(v float64) *float64 { return &v }
