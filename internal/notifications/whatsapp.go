package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"croptrust/verification-portal/verification-backend/pkg/httpclient"
)

const defaultFirstName = "Farmer"

// WhatsAppConfig configures the Chatrace flow API
type WhatsAppConfig struct {
	APIURL          string
	APIKey          string
	ApprovalFlowID  string
	RejectionFlowID string
	CountryCode     string
	Timeout         time.Duration
}

// WhatsAppChannel delivers notices by triggering Chatrace flows
type WhatsAppChannel struct {
	apiURL        string
	apiKey        string
	approvalFlow  int
	rejectionFlow int
	countryCode   string
	client        *http.Client
	logger        *zap.Logger
}

// NewWhatsAppChannel validates the flow ids up front so a misconfigured
// deployment fails at startup rather than on the first finalize.
func NewWhatsAppChannel(cfg WhatsAppConfig, logger *zap.Logger) (*WhatsAppChannel, error) {
	approval, err := strconv.Atoi(strings.TrimSpace(cfg.ApprovalFlowID))
	if err != nil {
		return nil, fmt.Errorf("invalid approval flow id %q: %w", cfg.ApprovalFlowID, err)
	}
	rejection, err := strconv.Atoi(strings.TrimSpace(cfg.RejectionFlowID))
	if err != nil {
		return nil, fmt.Errorf("invalid rejection flow id %q: %w", cfg.RejectionFlowID, err)
	}
	cc := cfg.CountryCode
	if cc == "" {
		cc = DefaultCountryCode
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WhatsAppChannel{
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		apiKey:        cfg.APIKey,
		approvalFlow:  approval,
		rejectionFlow: rejection,
		countryCode:   cc,
		client:        httpclient.New(timeout),
		logger:        logger,
	}, nil
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

type chatraceAction struct {
	Action    string      `json:"action"`
	FieldName string      `json:"field_name,omitempty"`
	Value     interface{} `json:"value,omitempty"`
	FlowID    int         `json:"flow_id,omitempty"`
}

type chatracePayload struct {
	Phone     string           `json:"phone"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Gender    string           `json:"gender"`
	Actions   []chatraceAction `json:"actions"`
}

func setField(name string, value string) chatraceAction {
	return chatraceAction{Action: "set_field_value", FieldName: name, Value: value}
}

func (c *WhatsAppChannel) payload(n Notice) chatracePayload {
	name := n.FullName
	if strings.TrimSpace(name) == "" {
		name = defaultFirstName
	}

	p := chatracePayload{
		Phone:     FormatPhoneNumber(n.Phone, c.countryCode),
		FirstName: name,
		LastName:  "farmer",
		Gender:    "male",
	}

	switch n.Kind {
	case KindRejection:
		p.Actions = []chatraceAction{
			setField("full_name", name),
			setField("Crop_Name", n.CropName),
			setField("request_id", n.RequestID),
			setField("rejected_reason", ReasonText(n.RejectionReason)),
			setField("verification_link", lastPathSegment(n.CropID)),
			setField("phone", n.Phone),
			{Action: "send_flow", FlowID: c.rejectionFlow},
		}
	default:
		p.Actions = []chatraceAction{
			setField("full_name", name),
			setField("Crop_Name", n.CropName),
			setField("request_status", "approved"),
			setField("request_date", n.ReviewedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")),
			setField("request_id", n.RequestID),
			{Action: "send_flow", FlowID: c.approvalFlow},
		}
	}
	return p
}

// Send posts the flow trigger. A 2xx response whose body carries an
// "error" member still counts as a failure.
func (c *WhatsAppChannel) Send(ctx context.Context, n Notice) ([]byte, error) {
	body, err := json.Marshal(c.payload(n))
	if err != nil {
		return nil, fmt.Errorf("failed to encode chatrace payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chatrace request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ACCESS-TOKEN", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatrace request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, fmt.Errorf("chatrace returned status %d", resp.StatusCode)
	}

	var parsed map[string]interface{}
	if json.Unmarshal(respBody, &parsed) == nil {
		if apiErr, ok := parsed["error"]; ok && apiErr != nil {
			return respBody, fmt.Errorf("chatrace error: %v", apiErr)
		}
	}

	c.logger.Debug("WhatsApp flow triggered",
		zap.String("kind", string(n.Kind)),
		zap.String("request_id", n.RequestID),
	)
	return respBody, nil
}

func lastPathSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
