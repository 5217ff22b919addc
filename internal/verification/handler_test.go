package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"croptrust/verification-portal/verification-backend/internal/auth"
)

const handlerSecret = "handler-secret"

type apiResponse struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Code       string          `json:"code"`
}

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(f.svc, zap.NewNop(), HandlerOptions{AdminAuth: auth.RequireAdmin(handlerSecret)})
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func adminHeader(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("reviewer-1", "Asha", auth.RoleAdmin, handlerSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func multipartBody(t *testing.T, fields map[string]string, photos int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i := 0; i < photos; i++ {
		part, err := w.CreateFormFile("photos", fmt.Sprintf("field%d.jpg", i))
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func submitFields(userID string) map[string]string {
	return map[string]string{
		"userId":   userID,
		"cropId":   "crop-" + userID,
		"cropName": "Maize",
		"district": "Kolar",
		"taluk":    "Malur",
		"phone":    "9876543210",
		"location": `{"lat": "13.0", "lng": "77.9"}`,
	}
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, apiResponse) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func postSubmit(t *testing.T, r *gin.Engine, fields map[string]string, photos int) (*httptest.ResponseRecorder, apiResponse) {
	body, contentType := multipartBody(t, fields, photos)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications/submit", body)
	req.Header.Set("Content-Type", contentType)
	return serve(r, req)
}

func jsonRequest(method, path, body, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func TestHandler_Submit(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w, resp := postSubmit(t, r, submitFields("u1"), 2)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Verification submitted successfully", resp.Message)

	var data submitResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "u1", data.UserID)
	assert.Equal(t, StatusPending, data.Status)
	assert.False(t, data.IsResubmission)
	assert.Len(t, data.Photos, 2)
	assert.Regexp(t, `^ORKM251405[0-9]{4}$`, data.RequestID)
}

func TestHandler_Submit_Conflict(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	existing := f.submitted(t, "u1")

	w, resp := postSubmit(t, r, submitFields("u1"), 1)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, MessageUnderReview, resp.Message)
	assert.Equal(t, string(CodeConflict), resp.Code)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, existing.ID, data["existingRequestId"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, false, data["canSubmit"])
	assert.Contains(t, data, "createdAt")
	assert.NotContains(t, data, "approvedAt")
}

func TestHandler_Submit_Validation(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w, resp := postSubmit(t, r, submitFields("u1"), 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "Missing required fields")

	req := jsonRequest(http.MethodPost, "/api/v1/verifications/submit", `{"userId": "u1"}`, "")
	w, resp = serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(CodeValidation), resp.Code)

	fields := submitFields("u1")
	fields["location"] = "not-json"
	w, resp = postSubmit(t, r, fields, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid location data", resp.Message)
}

func TestHandler_Submit_UploadLimit(t *testing.T) {
	f := newFixture(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc, zap.NewNop(), HandlerOptions{MaxUploadBytes: 64}).RegisterRoutes(r.Group("/api/v1"))

	w, resp := postSubmit(t, r, submitFields("u1"), 3)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(CodeValidation), resp.Code)
	assert.Equal(t, 0, f.repo.Count())
}

func TestHandler_AdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	rec := f.submitted(t, "u1")

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/verifications/admin/pending"},
		{http.MethodGet, "/api/v1/verifications/admin/pending/export"},
		{http.MethodPatch, "/api/v1/verifications/" + rec.ID + "/review-images"},
		{http.MethodPatch, "/api/v1/verifications/" + rec.ID + "/finalize"},
		{http.MethodPatch, "/api/v1/verifications/" + rec.ID + "/update-location-type"},
	}
	for _, p := range paths {
		w, _ := serve(r, jsonRequest(p.method, p.path, `{}`, ""))
		assert.Equal(t, http.StatusUnauthorized, w.Code, p.path)
	}
}

func TestHandler_ReviewAndFinalize(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	rec := f.submitted(t, "u1")
	admin := adminHeader(t)

	w, resp := serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/review-images", `{"photos": []}`, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "approvedPhotoIds must be an array", resp.Message)

	body := fmt.Sprintf(`{"approvedPhotoIds": [%q]}`, rec.Photos[0].ID)
	w, resp = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/review-images", body, admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Image review completed successfully", resp.Message)

	var review struct {
		Summary ReviewSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &review))
	assert.Equal(t, ReviewSummary{Total: 3, Approved: 1, Rejected: 2}, review.Summary)

	f.notifier.On("NotifyApproval", mock.Anything, mock.Anything).Return(nil).Once()
	w, resp = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/finalize", `{"status": "approved", "locationType": "farm"}`, admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Verification request approved successfully", resp.Message)

	var final map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &final))
	assert.Equal(t, "Asha", final["reviewedBy"])
	assert.Equal(t, "farm", final["locationType"])

	w, resp = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/finalize", `{"status": "rejected", "rejectionReason": "other"}`, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Request is already approved", resp.Message)
	f.notifier.AssertExpectations(t)
}

func TestHandler_Finalize_Validation(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	rec := f.submitted(t, "u1")
	admin := adminHeader(t)

	w, resp := serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/finalize", `{"status": "rejected"}`, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Rejection reason is required when rejecting a request", resp.Message)

	w, resp = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/finalize", `{"status": "approved", "locationType": "farm"}`, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(CodePreconditionFailed), resp.Code)

	w, _ = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/missing/finalize", `{"status": "rejected", "rejectionReason": "other"}`, admin))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateLocationType(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	rec := f.submitted(t, "u1")
	admin := adminHeader(t)

	w, resp := serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/update-location-type", `{"locationType": "village"}`, admin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Location type updated successfully", resp.Message)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "village", data["locationType"])
	assert.Equal(t, []interface{}{77.9, 13.0}, data["coordinates"])

	w, resp = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/update-location-type", ``, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", resp.Message)

	w, resp = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/update-location-type", `{"locationType": `, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", resp.Message)

	w, resp = serve(r, jsonRequest(http.MethodPatch, "/api/v1/verifications/"+rec.ID+"/update-location-type", `{"locationType": "town"}`, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "locationType must be")
}

func TestHandler_Reads(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	rec := f.submitted(t, "u1")

	w, resp := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/"+rec.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, rec.ID, view["_id"])
	assert.Contains(t, view, "photoSummary")

	w, resp = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Verification not found", resp.Message)

	w, resp = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/user/u1/current-status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Current status fetched successfully", resp.Message)

	w, resp = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/user/nobody/current-status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No verification requests found", resp.Message)
	var status CurrentStatus
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.CanSubmit)

	w, resp = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/user/u1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 1)

	w, _ = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/crop/crop-u1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_AdminList(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	f.submitted(t, "u1")
	f.submitted(t, "u2")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifications/admin/pending?limit=1&page=2", nil)
	req.Header.Set("Authorization", adminHeader(t))
	w, resp := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ListMessage("pending"), resp.Message)

	var res ListResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Len(t, res.Requests, 1)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 2, TotalRequests: 2, RequestsPerPage: 1, HasPrevPage: true}, res.Pagination)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/verifications/admin/done", nil)
	req.Header.Set("Authorization", adminHeader(t))
	w, _ = serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Files(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	rec := f.approve(t, f.submitted(t, "u1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/"+rec.ID+"/certificate", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "certificate_")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifications/admin/approved/export", nil)
	req.Header.Set("Authorization", adminHeader(t))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "verifications_approved_")
}

func TestHandler_InternalErrorExposesCause(t *testing.T) {
	f := newFixture(t)
	repo := new(MockRepository)
	f.svc = f.build(repo, f.store)
	r := newTestRouter(f)

	repo.On("GetByID", mock.Anything, "rec-1").Return(nil, context.DeadlineExceeded)

	w, resp := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/verifications/rec-1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(CodeInternal), resp.Code)
	assert.Contains(t, w.Body.String(), context.DeadlineExceeded.Error())
}
