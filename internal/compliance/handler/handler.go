// Package handler exposes the compliance engine over HTTP.
package handler

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/service"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/roadpass/roadpass/backend/go-services/pkg/middleware"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

// Handler holds dependencies
type Handler struct {
	svc            *service.Service
	maxUploadBytes int64
}

func New(svc *service.Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Register mounts the driver routes under /drivers/me and the reviewer routes
// under /admin/drivers/:driverId. auth must set the caller's identity.
func (h *Handler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc, reviewerRole string, extra ...gin.HandlerFunc) {
	me := rg.Group("/drivers/me", append([]gin.HandlerFunc{auth}, extra...)...)
	me.GET("/compliance", h.Status)
	me.POST("/artifacts/:type", h.Submit)
	me.DELETE("/artifacts/:type", h.Clear)
	me.GET("/artifacts/:type/url", h.ArtifactURL)
	me.PUT("/bank-info", h.PutBank)
	me.GET("/bank-info", h.GetBank)
	me.DELETE("/bank-info", h.DeleteBank)
	me.PUT("/company-info", h.PutCompany)
	me.GET("/company-info", h.GetCompany)
	me.DELETE("/company-info", h.DeleteCompany)

	admin := rg.Group("/admin/drivers/:driverId", append([]gin.HandlerFunc{auth, middleware.RequireRole(reviewerRole)}, extra...)...)
	admin.GET("/compliance", h.ReviewStatus)
	admin.PUT("/artifacts/:type/verification", h.Verify)
}

func (h *Handler) Status(c *gin.Context) {
	st, err := h.svc.GetStatus(c.Request.Context(), middleware.DriverID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) ReviewStatus(c *gin.Context) {
	st, err := h.svc.GetStatus(c.Request.Context(), c.Param("driverId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Submit accepts a multipart form with the document in field "file".
func (h *Handler) Submit(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(fh.Filename)); byExt != "" {
			contentType = byExt
		}
	}
	a, err := h.svc.Submit(c.Request.Context(), middleware.DriverID(c), compliance.ArtifactType(c.Param("type")), service.Upload{
		Content:      f,
		Size:         fh.Size,
		MimeType:     contentType,
		OriginalName: fh.Filename,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) Clear(c *gin.Context) {
	if _, err := h.svc.Clear(c.Request.Context(), middleware.DriverID(c), compliance.ArtifactType(c.Param("type"))); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ArtifactURL(c *gin.Context) {
	u, err := h.svc.ArtifactURL(c.Request.Context(), middleware.DriverID(c), compliance.ArtifactType(c.Param("type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

type verificationRequest struct {
	Verified *bool `json:"verified" binding:"required"`
	Revision int64 `json:"revision"`
}

func (h *Handler) Verify(c *gin.Context) {
	var req verificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.svc.SetVerification(c.Request.Context(), c.Param("driverId"), compliance.ArtifactType(c.Param("type")), *req.Verified, req.Revision)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Infow("review recorded", "reviewer", middleware.DriverID(c), "driver", c.Param("driverId"), "type", a.Type, "status", a.Status)
	c.JSON(http.StatusOK, a)
}

func (h *Handler) PutBank(c *gin.Context) {
	var req compliance.BankInformation
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.svc.UpsertBank(c.Request.Context(), middleware.DriverID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBank(c *gin.Context) {
	b, err := h.svc.GetBank(c.Request.Context(), middleware.DriverID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBank(c *gin.Context) {
	if err := h.svc.DeleteBank(c.Request.Context(), middleware.DriverID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) PutCompany(c *gin.Context) {
	var req compliance.CompanyInformation
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	co, err := h.svc.UpsertCompany(c.Request.Context(), middleware.DriverID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, co)
}

func (h *Handler) GetCompany(c *gin.Context) {
	co, err := h.svc.GetCompany(c.Request.Context(), middleware.DriverID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, co)
}

func (h *Handler) DeleteCompany(c *gin.Context) {
	if err := h.svc.DeleteCompany(c.Request.Context(), middleware.DriverID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StatusCode maps the engine's error taxonomy onto HTTP.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, compliance.ErrValidation), errors.Is(err, compliance.ErrNotVerifiable):
		return http.StatusBadRequest
	case errors.Is(err, compliance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, compliance.ErrNotSubmitted), errors.Is(err, compliance.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, compliance.ErrStorageWriteFailed), errors.Is(err, compliance.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what clients see for errors whose text may carry
// infrastructure detail.
func publicMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, compliance.ErrStorageWriteFailed):
		return "storage temporarily unavailable", true
	case errors.Is(err, compliance.ErrUnavailable):
		return "service temporarily unavailable", true
	case errors.Is(err, compliance.ErrConcurrentModification):
		return "concurrent modification, retry", true
	}
	return "", false
}

func writeError(c *gin.Context, err error) {
	code := StatusCode(err)
	if compliance.Retryable(err) {
		c.Header("Retry-After", "1")
	}
	if code == http.StatusInternalServerError {
		logger.Errorw("request failed", "path", c.FullPath(), "err", err)
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	if msg, ok := publicMessage(err); ok {
		logger.Warnw("request failed", "path", c.FullPath(), "status", code, "err", err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
