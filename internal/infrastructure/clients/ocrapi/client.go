package ocrapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/pkg/config"
)

// HTTPClient talks to the document extraction service. Extraction itself
// is opaque; this client only maps its response onto raw measurements.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new extraction service client
func NewClient(cfg *config.OCRConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type extractionLine struct {
	Name    string      `json:"name"`
	Value   interface{} `json:"value"`
	Unit    string      `json:"unit"`
	RefMin  *float64    `json:"refMin"`
	RefMax  *float64    `json:"refMax"`
	RefText *string     `json:"refText"`
}

type extractionResponse struct {
	Lines        []extractionLine `json:"lines"`
	TestDate     *time.Time       `json:"testDate"`
	HospitalName string           `json:"hospitalName"`
}

// ExtractDocument extracts the measurement lines of one document
func (c *HTTPClient) ExtractDocument(ctx context.Context, doc providers.SourceDocument) (*providers.ExtractedDocument, error) {
	if strings.TrimSpace(doc.URI) == "" {
		return nil, fmt.Errorf("document uri is required")
	}

	endpoint := fmt.Sprintf("%s/extract?document=%s", c.baseURL, url.QueryEscape(doc.URI))
	out := &extractionResponse{}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, nil, out); err != nil {
		return nil, err
	}

	measurements := make([]entities.RawMeasurement, 0, len(out.Lines))
	for _, line := range out.Lines {
		measurements = append(measurements, entities.RawMeasurement{
			Name:           line.Name,
			Value:          line.Value,
			Unit:           line.Unit,
			RefMin:         line.RefMin,
			RefMax:         line.RefMax,
			RefText:        line.RefText,
			SourceDocument: doc.ID,
		})
	}

	return &providers.ExtractedDocument{
		Document:     doc,
		Measurements: measurements,
		TestDate:     out.TestDate,
		HospitalName: out.HospitalName,
	}, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}

	return nil
}
