package verification

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"croptrust/verification-portal/verification-backend/internal/auth"
)

// Handler handles HTTP requests for verification records
type Handler struct {
	service        *Service
	logger         *zap.Logger
	adminAuth      gin.HandlerFunc
	maxUploadBytes int64
}

// HandlerOptions configures a Handler. A nil AdminAuth leaves the admin
// routes open.
type HandlerOptions struct {
	AdminAuth      gin.HandlerFunc
	MaxUploadBytes int64
}

func NewHandler(service *Service, logger *zap.Logger, opts HandlerOptions) *Handler {
	if opts.AdminAuth == nil {
		opts.AdminAuth = func(c *gin.Context) { c.Next() }
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 << 20
	}
	return &Handler{
		service:        service,
		logger:         logger,
		adminAuth:      opts.AdminAuth,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// RegisterRoutes registers verification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	v := router.Group("/verifications")
	{
		v.POST("/submit", h.submit)
		v.POST("/submit-by-crop", h.submitByCrop)

		v.GET("/admin/:status", h.adminAuth, h.listAdmin)
		v.GET("/admin/:status/export", h.adminAuth, h.exportAdmin)

		v.GET("/user/:userId", h.listByUser)
		v.GET("/user/:userId/current-status", h.currentStatus)
		v.GET("/crop/:cropId", h.listByCrop)

		v.GET("/:id", h.get)
		v.GET("/:id/certificate", h.certificate)
		v.PATCH("/:id/review-images", h.adminAuth, h.reviewImages)
		v.PATCH("/:id/finalize", h.adminAuth, h.finalize)
		v.PATCH("/:id/update-location-type", h.adminAuth, h.updateLocationType)
	}
}

type submitResponse struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"requestId"`
	UserID         string    `json:"userId"`
	CropID         string    `json:"cropId"`
	Photos         []Photo   `json:"photos"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	IsResubmission bool      `json:"isResubmission"`
}

func newSubmitResponse(res *SubmitResult) submitResponse {
	r := res.Record
	return submitResponse{
		ID:             r.ID,
		RequestID:      r.RequestID,
		UserID:         r.UserID,
		CropID:         r.CropID,
		Photos:         r.Photos,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		IsResubmission: res.IsResubmission,
	}
}

// submit handles POST /verifications/submit
func (h *Handler) submit(c *gin.Context) {
	photos, err := h.readPhotos(c)
	if err != nil {
		h.respondError(c, err, "Failed to submit verification")
		return
	}

	res, err := h.service.Submit(c.Request.Context(), Submission{
		UserID:   c.PostForm("userId"),
		CropID:   c.PostForm("cropId"),
		CropName: c.PostForm("cropName"),
		FullName: c.PostForm("fullName"),
		Phone:    c.PostForm("phone"),
		Village:  c.PostForm("village"),
		Taluk:    c.PostForm("taluk"),
		District: c.PostForm("district"),
		Quantity: c.PostForm("quantity"),
		Variety:  c.PostForm("variety"),
		Moisture: c.PostForm("moisture"),
		WillDry:  c.PostForm("willDry"),
		Location: c.PostForm("location"),
		Photos:   photos,
	})
	if err != nil {
		h.respondError(c, err, "Failed to submit verification")
		return
	}

	respond(c, http.StatusOK, "Verification submitted successfully", newSubmitResponse(res))
}

// submitByCrop handles POST /verifications/submit-by-crop
func (h *Handler) submitByCrop(c *gin.Context) {
	photos, err := h.readPhotos(c)
	if err != nil {
		h.respondError(c, err, "Failed to submit verification")
		return
	}

	res, err := h.service.SubmitForCrop(c.Request.Context(), CropSubmission{
		CropID:   c.PostForm("cropId"),
		Location: c.PostForm("location"),
		Photos:   photos,
	})
	if err != nil {
		h.respondError(c, err, "Failed to submit verification")
		return
	}

	respond(c, http.StatusOK, "Verification submitted successfully", newSubmitResponse(res))
}

// readPhotos reads the "photos" parts of a multipart body. A body that is
// not multipart yields no photos, which the service rejects.
func (h *Handler) readPhotos(c *gin.Context) ([]PhotoFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, validationError("Upload exceeds the %d MB request limit", h.maxUploadBytes>>20)
		}
		return nil, validationError("Invalid multipart form")
	}

	headers := form.File["photos"]
	photos := make([]PhotoFile, 0, len(headers))
	for i, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, validationError("Failed to read photo %d", i+1)
		}
		photos = append(photos, PhotoFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return photos, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type reviewImagesRequest struct {
	ApprovedPhotoIDs *[]string `json:"approvedPhotoIds"`
}

// reviewImages handles PATCH /verifications/:id/review-images
func (h *Handler) reviewImages(c *gin.Context) {
	var req reviewImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ApprovedPhotoIDs == nil {
		h.respondError(c, validationError("approvedPhotoIds must be an array"), "")
		return
	}

	res, err := h.service.ReviewPhotos(c.Request.Context(), c.Param("id"), *req.ApprovedPhotoIDs)
	if err != nil {
		h.respondError(c, err, "Error reviewing images")
		return
	}

	respond(c, http.StatusOK, "Image review completed successfully", gin.H{
		"id":      res.Record.ID,
		"photos":  res.Photos,
		"summary": res.Summary,
	})
}

// finalize handles PATCH /verifications/:id/finalize
func (h *Handler) finalize(c *gin.Context) {
	var d Decision
	if err := c.ShouldBindJSON(&d); err != nil {
		h.respondError(c, validationError("Invalid request body"), "")
		return
	}
	if d.ReviewedBy == "" {
		d.ReviewedBy = auth.ReviewerFromContext(c)
	}

	rec, err := h.service.Finalize(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		h.respondError(c, err, "Error finalizing verification")
		return
	}

	respond(c, http.StatusOK, fmt.Sprintf("Verification request %s successfully", rec.Status), gin.H{
		"id":              rec.ID,
		"requestId":       rec.RequestID,
		"userId":          rec.UserID,
		"status":          rec.Status,
		"rejectionReason": rec.RejectionReason,
		"rejectionNotes":  rec.RejectionNotes,
		"reviewedAt":      rec.ReviewedAt,
		"reviewedBy":      rec.ReviewedBy,
		"locationType":    rec.Location.LocationType,
		"photos":          rec.Photos,
	})
}

type locationTypeRequest struct {
	LocationType LocationType `json:"locationType"`
}

// updateLocationType handles PATCH /verifications/:id/update-location-type
func (h *Handler) updateLocationType(c *gin.Context) {
	var req locationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, validationError("Invalid request body"), "")
		return
	}

	rec, err := h.service.UpdateLocationType(c.Request.Context(), c.Param("id"), req.LocationType)
	if err != nil {
		h.respondError(c, err, "Error updating location type")
		return
	}

	respond(c, http.StatusOK, "Location type updated successfully", gin.H{
		"id":           rec.ID,
		"locationType": rec.Location.LocationType,
		"coordinates":  rec.Location.Coordinates,
	})
}

// get handles GET /verifications/:id
func (h *Handler) get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Error fetching verification")
		return
	}
	respond(c, http.StatusOK, "", view)
}

// certificate handles GET /verifications/:id/certificate
func (h *Handler) certificate(c *gin.Context) {
	file, err := h.service.Certificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Error generating certificate")
		return
	}
	sendFile(c, file)
}

// listByUser handles GET /verifications/user/:userId
func (h *Handler) listByUser(c *gin.Context) {
	list, err := h.service.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err, "Error fetching verifications")
		return
	}
	respond(c, http.StatusOK, "", list)
}

// currentStatus handles GET /verifications/user/:userId/current-status
func (h *Handler) currentStatus(c *gin.Context) {
	status, err := h.service.CurrentStatus(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err, "Error fetching current status")
		return
	}

	message := "Current status fetched successfully"
	if !status.HasVerification {
		message = "No verification requests found"
	}
	respond(c, http.StatusOK, message, status)
}

// listByCrop handles GET /verifications/crop/:cropId
func (h *Handler) listByCrop(c *gin.Context) {
	list, err := h.service.ListByCrop(c.Request.Context(), c.Param("cropId"))
	if err != nil {
		h.respondError(c, err, "Error fetching verifications")
		return
	}
	respond(c, http.StatusOK, "", list)
}

func listQuery(c *gin.Context) ListQuery {
	return ListQuery{
		Status:   c.Param("status"),
		Page:     c.Query("page"),
		Limit:    c.Query("limit"),
		UserID:   c.Query("userId"),
		Phone:    c.Query("phone"),
		FullName: c.Query("fullName"),
		CropName: c.Query("cropName"),
		Village:  c.Query("village"),
		Taluk:    c.Query("taluk"),
		District: c.Query("district"),
		FromDate: c.Query("fromDate"),
		ToDate:   c.Query("toDate"),
	}
}

// listAdmin handles GET /verifications/admin/:status
func (h *Handler) listAdmin(c *gin.Context) {
	q := listQuery(c)
	res, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err, "Error fetching requests")
		return
	}
	respond(c, http.StatusOK, ListMessage(q.Status), res)
}

// exportAdmin handles GET /verifications/admin/:status/export
func (h *Handler) exportAdmin(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), listQuery(c))
	if err != nil {
		h.respondError(c, err, "Error exporting requests")
		return
	}
	sendFile(c, file)
}

func sendFile(c *gin.Context, file *File) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
