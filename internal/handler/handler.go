package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"faceattend/internal/attendance"
)

const healthTimeout = 2 * time.Second

// Check probes one dependency for /healthz.
type Check func(ctx context.Context) error

type Handler struct {
	svc    *attendance.Service
	checks map[string]Check
}

func New(svc *attendance.Service, checks map[string]Check) *Handler {
	return &Handler{svc: svc, checks: checks}
}

// Register mounts every route on r. admin runs in front of the /admin group.
func (h *Handler) Register(r gin.IRouter, admin ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)
	r.GET("/generate-presigned-url", h.PresignedURL)
	r.POST("/user/compare", h.Compare)

	g := r.Group("/admin", admin...)
	g.POST("/register", h.RegisterUser)
	g.GET("/history", h.History)
	g.GET("/users", h.Users)
}

// statusFor maps workflow failures to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		healthy := check(ctx) == nil
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Uploads ----------

type presignRequest struct {
	FileName string `form:"fileName" binding:"required"`
	FileType string `form:"fileType" binding:"required"`
}

// PresignedURL returns a signed PUT URL plus the object key the client
// should reference afterwards.
func (h *Handler) PresignedURL(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	up, err := h.svc.IssueUploadURL(c.Request.Context(), req.FileName, req.FileType)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

// ---------- Users ----------

type userRequest struct {
	Name     string `json:"name" binding:"required"`
	ImageKey string `json:"imageKey" binding:"required"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.svc.RegisterUser(c.Request.Context(), req.Name, req.ImageKey)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) Users(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// ---------- Attendance ----------

// Compare checks the submitted photo against the named user's reference
// photo and marks attendance on a match.
func (h *Handler) Compare(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	marked, err := h.svc.CompareAndMark(c.Request.Context(), req.Name, req.ImageKey)
	if err != nil {
		fail(c, err)
		return
	}
	if !marked {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Face not recognized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance marked"})
}

func (h *Handler) History(c *gin.Context) {
	records, err := h.svc.ListAttendance(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
