package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	"github.com/noah-isme/tahfidz-admin-api/pkg/response"
)

type studentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentLister
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentLister) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name, NIS or NISN"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ClassID = c.Query("classId")
	filter.Status = strings.ToUpper(strings.TrimSpace(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}
