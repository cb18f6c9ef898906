package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/exam-portal/exam-service/internal/config"
	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
	"github.com/exam-portal/exam-service/internal/services"
	"github.com/exam-portal/exam-service/internal/storage"
	"github.com/exam-portal/exam-service/internal/utils"
	"github.com/exam-portal/exam-service/internal/validator"
)

type HandlerManager struct {
	examHandler         *ExamHandler
	attemptHandler      *AttemptHandler
	gradingHandler      *GradingHandler
	notificationHandler *NotificationHandler
	authMiddleware      *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
	store storage.Storage,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		examHandler:         NewExamHandler(serviceManager.Exam(), logger),
		attemptHandler:      NewAttemptHandler(serviceManager.Attempt(), validator, logger, store),
		gradingHandler:      NewGradingHandler(serviceManager.Grading(), serviceManager.Attempt(), validator, logger),
		notificationHandler: NewNotificationHandler(serviceManager.Notification(), logger),
		authMiddleware:      authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam routes
		exams := v1.Group("/exams")
		{
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.POST("/:id/attempts", hm.attemptHandler.StartAttempt)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.GET("/me", hm.attemptHandler.ListMyAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SaveAnswers)
			attempts.PUT("/:id/answers/:question_id", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
		}

		// Notification routes
		v1.GET("/notifications", hm.notificationHandler.ListMyNotifications)

		// Grading routes - Teachers, Proctors and Admins only
		grading := v1.Group("/grading")
		grading.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleProctor, models.RoleAdmin))
		{
			grading.GET("/attempts", hm.gradingHandler.ListAttempts)
			grading.GET("/attempts/:id", hm.gradingHandler.GetAttempt)
			grading.POST("/attempts/:id/auto", hm.gradingHandler.AutoGradeAttempt)
			grading.POST("/attempts/:id/manual", hm.gradingHandler.GradeAttempt)
			grading.POST("/attempts/:id/cancel", hm.gradingHandler.CancelAttempt)
			grading.POST("/answers", hm.gradingHandler.GradeAnswer)
			grading.GET("/exams/:id/stats", hm.gradingHandler.GetStats)
			grading.GET("/exams/:id/export", hm.gradingHandler.ExportScores)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
