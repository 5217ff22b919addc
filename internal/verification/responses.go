package verification

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// envelope is the response body of every endpoint
type envelope struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Code       Code        `json:"code,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{StatusCode: status, Message: message, Data: data})
}

type conflictData struct {
	ExistingRequestID string     `json:"existingRequestId"`
	RequestID         string     `json:"requestId,omitempty"`
	Status            Status     `json:"status"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	ApprovedAt        *time.Time `json:"approvedAt,omitempty"`
	CanSubmit         bool       `json:"canSubmit"`
}

func newConflictData(existing *Record) *conflictData {
	d := &conflictData{
		ExistingRequestID: existing.ID,
		RequestID:         existing.RequestID,
		Status:            existing.Status,
	}
	if existing.Status == StatusApproved {
		d.ApprovedAt = existing.ReviewedAt
	} else {
		created := existing.CreatedAt
		d.CreatedAt = &created
	}
	return d
}

// respondError writes err with its mapped status. Causes are only exposed
// for server-side failures.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	var verr *Error
	if !errors.As(err, &verr) {
		h.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, envelope{
			StatusCode: http.StatusInternalServerError,
			Message:    fallback,
			Error:      err.Error(),
			Code:       CodeInternal,
		})
		return
	}

	status := HTTPStatus(verr.Code)
	body := envelope{StatusCode: status, Message: verr.Message, Code: verr.Code}
	if status >= http.StatusInternalServerError {
		if verr.Err != nil {
			body.Error = verr.Err.Error()
		}
		h.logger.Error(verr.Message, zap.String("path", c.FullPath()), zap.Error(err))
	}
	if verr.Code == CodeConflict && verr.Existing != nil {
		body.Data = newConflictData(verr.Existing)
	}
	c.JSON(status, body)
}
