package transport

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-ct-staging/internal/auth"
	"go-ct-staging/internal/config"
	apperrors "go-ct-staging/internal/errors"
	"go-ct-staging/internal/logger"
	"go-ct-staging/internal/service"
	"go-ct-staging/pkg/models"
)

// acceptedMediaType checks the upload content type against the allowed set.
// DICOM uploads frequently arrive as octet-stream, so that prefix is allowed
// and the payload is sniffed downstream.
func acceptedMediaType(contentType string) bool {
	for _, prefix := range []string{"image/", "application/dicom", "application/octet-stream"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(svc service.StagingAnalyzer, authSvc *auth.Service, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxUploadSize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.POST("/auth/login", login(authSvc))

	authorized := r.Group("/", bearerAuth(authSvc))
	authorized.GET("/auth/me", currentUser)
	authorized.POST("/analyze", analyzeImage(svc))

	return r
}

func analyzeImage(svc service.StagingAnalyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		requestID := uuid.NewString()

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
		}).Info("Processing staging request")

		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "missing file upload", err)
			return
		}

		contentType := fileHeader.Header.Get("Content-Type")
		if !acceptedMediaType(contentType) {
			respondError(c, http.StatusBadRequest, "unsupported file type",
				apperrors.NewValidationError("upload a DICOM (.dcm) or image file (.png, .jpg)", nil))
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable file upload", err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable file upload", err)
			return
		}

		result, err := svc.Analyze(c.Request.Context(), service.Upload{
			Data:      data,
			MediaType: contentType,
			RequestID: requestID,
		})
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id":         requestID,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"diagnostic":         result.Diagnostic(),
		}).Info("Staging request completed")

		c.JSON(http.StatusOK, models.AnalysisResponse{
			Success: true,
			Data:    result,
			Message: "Analysis completed successfully",
		})
	}
}

func login(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		token, user, err := authSvc.Login(req.Username, req.Password)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "login failed", err)
			return
		}

		c.JSON(http.StatusOK, models.AuthResponse{
			AccessToken: token,
			TokenType:   "bearer",
			User:        *user,
		})
	}
}

func currentUser(c *gin.Context) {
	user, ok := c.Get("user")
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}
	c.JSON(http.StatusOK, user)
}

func bearerAuth(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			respondError(c, http.StatusUnauthorized, "authentication required", nil)
			return
		}

		user, err := authSvc.Verify(strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			respondError(c, http.StatusUnauthorized, "authentication failed", err)
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"service": "nsclc-staging",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, apperrors.GetStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	detail := message
	if err != nil {
		detail = fmt.Sprintf("%s: %v", message, err)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: detail,
	})
}
