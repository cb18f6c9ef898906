package postgres

import (
	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/repositories"
)

// applyAttemptFilters applies common filters to attempt queries.
func applyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if len(filters.Status) > 0 {
		query = query.Where("exam_attempts.status IN ?", filters.Status)
	}
	if filters.ExamID != nil {
		query = query.Where("exam_attempts.exam_id = ?", *filters.ExamID)
	}
	if filters.StudentID != nil {
		query = query.Where("exam_attempts.student_id = ?", *filters.StudentID)
	}
	if filters.DateFrom != nil {
		query = query.Where("exam_attempts.created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("exam_attempts.created_at <= ?", *filters.DateTo)
	}
	return query
}

// applyPaginationAndSort applies pagination and sorting. Sort columns are
// whitelisted to keep user input out of the ORDER BY clause.
func applyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSortColumns := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"id":           true,
		"status":       true,
		"started_at":   true,
		"submitted_at": true,
		"total_score":  true,
	}

	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
