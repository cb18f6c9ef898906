package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

// ExportScores renders the score sheet of an exam as an xlsx workbook.
func (s *gradingService) ExportScores(ctx context.Context, examID uint, graderID string) ([]byte, error) {
	if err := s.requireExamAccess(ctx, examID, graderID, "export_scores"); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	attempts, _, err := s.repo.Attempt().ListForGrading(ctx, nil, "", repositories.AttemptFilters{
		ExamID: &examID,
		Status: []models.AttemptStatus{
			models.AttemptSubmitted,
			models.AttemptGraded,
		},
		SortBy:    "submitted_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	// Resolve student names in one batch.
	ids := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		ids = append(ids, attempt.StudentID)
	}
	names := make(map[string]string, len(ids))
	if users, err := s.repo.User().GetByIDs(ctx, ids); err == nil {
		for _, user := range users {
			names[user.ID] = user.FullName
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Scores"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Student ID", "Student Name", "Status", "Submitted At", "Score", "Out Of"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, attempt := range attempts {
		submittedAt := ""
		if attempt.SubmittedAt != nil {
			submittedAt = attempt.SubmittedAt.Format("2006-01-02 15:04:05")
		}

		values := []any{
			attempt.StudentID,
			names[attempt.StudentID],
			string(attempt.Status),
			submittedAt,
			nil,
			exam.TotalScore,
		}
		if attempt.TotalScore != nil {
			values[4] = *attempt.TotalScore
		}

		for col, value := range values {
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Score sheet exported",
		"exam_id", examID,
		"attempts", len(attempts),
		"grader_id", graderID)

	return buf.Bytes(), nil
}
