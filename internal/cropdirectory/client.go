package cropdirectory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"croptrust/verification-portal/verification-backend/pkg/httpclient"
)

// ErrCropNotFound is returned when the directory has no crop with the id
var ErrCropNotFound = errors.New("crop not found")

// Text decodes a JSON string, number or bool into its string form. The
// directory is loose about scalar types.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string { return string(t) }

type Owner struct {
	ID    Text `json:"id"`
	Name  Text `json:"name"`
	Phone Text `json:"phone"`
}

type Farm struct {
	Village  Text `json:"village"`
	Taluk    Text `json:"taluk"`
	District Text `json:"district"`
}

// Crop is a listing as returned by the directory
type Crop struct {
	ID        Text  `json:"id"`
	CropName  Text  `json:"cropName"`
	Owner     Owner `json:"owner"`
	Farm      Farm  `json:"farm"`
	Quantity  Text  `json:"quantity"`
	Measure   Text  `json:"measure"`
	Variety   Text  `json:"variety"`
	Moisture  Text  `json:"moisture"`
	DryIntent Text  `json:"dryIntent"`
}

// QuantityLabel renders quantity with its unit, e.g. "20 quintal"
func (c *Crop) QuantityLabel() string {
	q := strings.TrimSpace(c.Quantity.String())
	m := strings.TrimSpace(c.Measure.String())
	if q == "" || m == "" {
		return q
	}
	return q + " " + m
}

type cropEnvelope struct {
	Data *Crop `json:"data"`
}

// Client looks crops up in the external crop directory
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	attempts   int
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpclient.New(timeout),
		logger:     logger,
		attempts:   2,
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "crop directory returned status " + strconv.Itoa(e.code)
}

func retriable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return !errors.Is(err, ErrCropNotFound)
}

// GetCropByID fetches one crop. A 404 maps to ErrCropNotFound.
func (c *Client) GetCropByID(ctx context.Context, cropID string) (*Crop, error) {
	var crop *Crop
	err := httpclient.Retry(ctx, c.attempts, 200*time.Millisecond, retriable, func() error {
		var err error
		crop, err = c.fetch(ctx, cropID)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrCropNotFound) {
			c.logger.Warn("Crop directory lookup failed",
				zap.String("crop_id", cropID),
				zap.Error(err))
		}
		return nil, err
	}
	return crop, nil
}

func (c *Client) fetch(ctx context.Context, cropID string) (*Crop, error) {
	endpoint := fmt.Sprintf("%s/crops/%s", c.baseURL, url.PathEscape(cropID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrCropNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}

	var env cropEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode crop: %w", err)
	}
	if env.Data == nil {
		return nil, ErrCropNotFound
	}
	return env.Data, nil
}
