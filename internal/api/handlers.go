package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/inference-bench/inference-bench/internal/report"
	"github.com/inference-bench/inference-bench/internal/storage"
	"github.com/inference-bench/inference-bench/pkg/models"
)

// Request/Response types

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ListRunsResponse wraps the run listing
type ListRunsResponse struct {
	Runs  []*models.Run `json:"runs"`
	Count int           `json:"count"`
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleListRuns(c *gin.Context) {
	var query models.ListRunsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     sanitizeValidationError(err),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	runs, err := s.runs.List(c.Request.Context(), query)
	if err != nil {
		s.logger.Error("failed to list runs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to list runs",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	if runs == nil {
		runs = []*models.Run{}
	}

	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs, Count: len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.runs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:     "run not found",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		s.logger.Error("failed to get run", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to get run",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetRunReport(c *gin.Context) {
	id := c.Param("id")

	doc, err := s.runs.GetReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:     "run not found",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		s.logger.Error("failed to get run report", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to get run report",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.Data(http.StatusOK, "application/json", doc)
}

func (s *Server) handleGetRunAnalysis(c *gin.Context) {
	id := c.Param("id")

	doc, err := s.runs.GetReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:     "run not found",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		s.logger.Error("failed to get run report", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to get run report",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	var r report.Report
	if err := json.Unmarshal(doc, &r); err != nil {
		s.logger.Error("failed to decode stored report", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "stored report is not valid JSON",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, report.Analyze(&r))
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	id := c.Param("id")

	if err := s.runs.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:     "run not found",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		s.logger.Error("failed to delete run", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to delete run",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// sanitizeValidationError converts internal field names to JSON field names
// in validation error messages so handlers do not leak struct names.
func sanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	var messages []string
	for _, fe := range validationErrs {
		jsonFieldName := toSnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", jsonFieldName))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", jsonFieldName, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", jsonFieldName, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", jsonFieldName, fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}

var snakeCaseRegex = regexp.MustCompile("([a-z0-9])([A-Z])")

// toSnakeCase converts a PascalCase or camelCase string to snake_case
func toSnakeCase(s string) string {
	return strings.ToLower(snakeCaseRegex.ReplaceAllString(s, "${1}_${2}"))
}
