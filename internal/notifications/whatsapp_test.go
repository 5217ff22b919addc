package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedRequest struct {
	header  http.Header
	path    string
	payload chatracePayload
}

func newChatraceServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.header = r.Header.Clone()
		captured.path = r.URL.Path
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &captured.payload))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestWhatsApp(t *testing.T, url string) *WhatsAppChannel {
	t.Helper()
	ch, err := NewWhatsAppChannel(WhatsAppConfig{
		APIURL:          url,
		APIKey:          "token",
		ApprovalFlowID:  "111",
		RejectionFlowID: "222",
		Timeout:         time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return ch
}

func fieldValues(p chatracePayload) map[string]interface{} {
	out := make(map[string]interface{})
	for _, a := range p.Actions {
		if a.Action == "set_field_value" {
			out[a.FieldName] = a.Value
		}
	}
	return out
}

func TestWhatsAppChannel_Rejection(t *testing.T) {
	srv, got := newChatraceServer(t, http.StatusOK, `{"success":true}`)
	ch := newTestWhatsApp(t, srv.URL)

	resp, err := ch.Send(context.Background(), Notice{
		Kind:            KindRejection,
		Phone:           "98765 43210",
		RequestID:       "ORKM2503011234",
		CropName:        "Maize",
		CropID:          "https://market.example/crops/abc123",
		RejectionReason: "photo_too_dark",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(resp))

	assert.Equal(t, "/users", got.path)
	assert.Equal(t, "token", got.header.Get("X-ACCESS-TOKEN"))
	assert.Equal(t, "application/json", got.header.Get("Accept"))

	assert.Equal(t, "+919876543210", got.payload.Phone)
	assert.Equal(t, "Farmer", got.payload.FirstName)
	assert.Equal(t, "farmer", got.payload.LastName)
	assert.Equal(t, "male", got.payload.Gender)

	fields := fieldValues(got.payload)
	assert.Equal(t, "Farmer", fields["full_name"])
	assert.Equal(t, "Maize", fields["Crop_Name"])
	assert.Equal(t, "ORKM2503011234", fields["request_id"])
	assert.Equal(t, "ಫೋಟೋ ತುಂಬಾ ಗಾಢವಾಗಿದೆ / Photo too dark", fields["rejected_reason"])
	assert.Equal(t, "abc123", fields["verification_link"])
	assert.Equal(t, "98765 43210", fields["phone"])

	last := got.payload.Actions[len(got.payload.Actions)-1]
	assert.Equal(t, "send_flow", last.Action)
	assert.Equal(t, 222, last.FlowID)
}

func TestWhatsAppChannel_Approval(t *testing.T) {
	srv, got := newChatraceServer(t, http.StatusOK, `{}`)
	ch := newTestWhatsApp(t, srv.URL)

	reviewed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := ch.Send(context.Background(), Notice{
		Kind:       KindApproval,
		Phone:      "9876543210",
		FullName:   "Ravi Kumar",
		RequestID:  "ORKM2503011234",
		CropName:   "Maize",
		ReviewedAt: reviewed,
	})
	require.NoError(t, err)

	fields := fieldValues(got.payload)
	assert.Equal(t, "Ravi Kumar", got.payload.FirstName)
	assert.Equal(t, "approved", fields["request_status"])
	assert.Equal(t, "2025-03-01T10:00:00.000Z", fields["request_date"])
	assert.Equal(t, 111, got.payload.Actions[len(got.payload.Actions)-1].FlowID)
}

func TestWhatsAppChannel_ErrorBodyIsFailure(t *testing.T) {
	srv, _ := newChatraceServer(t, http.StatusOK, `{"error":"invalid flow"}`)
	ch := newTestWhatsApp(t, srv.URL)

	_, err := ch.Send(context.Background(), Notice{Kind: KindApproval, Phone: "9876543210"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flow")
}

func TestWhatsAppChannel_Non2xx(t *testing.T) {
	srv, _ := newChatraceServer(t, http.StatusUnauthorized, `{}`)
	ch := newTestWhatsApp(t, srv.URL)

	_, err := ch.Send(context.Background(), Notice{Kind: KindApproval, Phone: "9876543210"})
	assert.Error(t, err)
}

func TestNewWhatsAppChannel_InvalidFlowID(t *testing.T) {
	_, err := NewWhatsAppChannel(WhatsAppConfig{ApprovalFlowID: "abc", RejectionFlowID: "1"}, zap.NewNop())
	assert.Error(t, err)
}
