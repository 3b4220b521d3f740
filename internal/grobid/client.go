// Package grobid provides the client for the external document-structure
// service. The service converts a PDF into tagged TEI markup; its output is
// best-effort and is parsed defensively by the tei package.
package grobid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-parsing-service/internal/domain"
	"github.com/helixir/paper-parsing-service/internal/ratelimit"
)

// fulltextEndpoint is the structure service's full-document processing path.
const fulltextEndpoint = "/api/processFulltextDocument"

// Default values for the structure service client.
const (
	defaultTimeout   = 120 * time.Second
	defaultUserAgent = "Helixir-PaperParsing/1.0"
	maxResponseBytes = 50 << 20
)

// Options are the tuning knobs passed to the structure service per call.
// They are call-site configuration, not business logic: methods-extraction
// and reference-extraction calls use different fixed presets.
type Options struct {
	// ConsolidateHeader asks the service to enrich header metadata.
	ConsolidateHeader bool
	// ConsolidateCitations asks the service to enrich reference entries
	// against external data.
	ConsolidateCitations bool
	// IncludeRawCitations includes raw citation strings in the markup.
	IncludeRawCitations bool
	// GenerateIDs assigns unique identifiers to markup elements. Used by the
	// reference preset.
	GenerateIDs bool
	// GenerateTeiIDs assigns xml:id attributes to TEI elements. Used by the
	// methods preset; the service treats this as a distinct knob from
	// GenerateIDs.
	GenerateTeiIDs bool
	// TEICoordinates names the element types to annotate with page
	// coordinates (empty disables).
	TEICoordinates string
	// Segmentation selects the segmentation granularity ("detailed" or
	// the service default).
	Segmentation string
}

// MethodsOptions returns the preset used when extracting methods sections:
// detailed segmentation and header consolidation, no citation consolidation.
func MethodsOptions() Options {
	return Options{
		ConsolidateHeader: true,
		GenerateTeiIDs:    true,
		Segmentation:      "detailed",
	}
}

// ReferencesOptions returns the preset used when extracting the
// bibliography: citation consolidation and raw-citation inclusion on top of
// the methods preset, plus coordinates for reference structures.
func ReferencesOptions() Options {
	return Options{
		ConsolidateHeader:    true,
		ConsolidateCitations: true,
		IncludeRawCitations:  true,
		GenerateIDs:          true,
		TEICoordinates:       "biblStruct",
		Segmentation:         "detailed",
	}
}

// query encodes the options as structure-service query parameters.
func (o Options) query() url.Values {
	params := url.Values{}
	params.Set("consolidateHeader", boolParam(o.ConsolidateHeader))
	params.Set("consolidateCitations", boolParam(o.ConsolidateCitations))
	if o.IncludeRawCitations {
		params.Set("includeRawCitations", "1")
	}
	if o.GenerateIDs {
		params.Set("generateIDs", "1")
	}
	if o.GenerateTeiIDs {
		params.Set("generateTeiIds", "1")
	}
	if o.TEICoordinates != "" {
		params.Set("teiCoordinates", o.TEICoordinates)
	}
	if o.Segmentation != "" {
		params.Set("segmentation", o.Segmentation)
	}
	return params
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Config holds structure service client configuration.
type Config struct {
	// BaseURL is the service base URL; it doubles as the token audience.
	BaseURL string
	// Timeout is the per-call HTTP timeout. Default: 120 seconds.
	Timeout time.Duration
	// RateLimit is the maximum requests per second (0 = unlimited).
	RateLimit float64
	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// Client calls the structure service over HTTPS with a bearer credential
// obtained per call from a TokenSource scoped to the service base URL.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	limiter    *ratelimit.Limiter
	baseURL    string
	userAgent  string
	logger     zerolog.Logger
}

// NewClient creates a structure service client.
func NewClient(cfg Config, tokens TokenSource, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tokens:    tokens,
		limiter:   ratelimit.New(cfg.RateLimit, 1),
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		logger:    logger.With().Str("component", "grobid-client").Logger(),
	}
}

// ProcessFulltext submits the PDF at pdfPath to the structure service and
// returns the raw TEI markup body. A missing local file fails fast before
// any network call. A non-200 response propagates as a
// *domain.ExternalAPIError carrying the status and body; callers at the
// pipeline level decide whether to degrade.
func (c *Client) ProcessFulltext(ctx context.Context, pdfPath string, opts Options) ([]byte, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("grobid: %w: %s", domain.ErrFileNotFound, pdfPath)
	}

	token, err := c.tokens.Token(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("grobid: fetch identity token: %w", err)
	}

	body, contentType, err := buildMultipartBody(pdfPath)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + fulltextEndpoint + "?" + opts.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("grobid: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("grobid: rate limiter wait: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grobid: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("grobid: read response body: %w", err)
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Int("body_bytes", len(respBody)).
		Msg("structure service call finished")

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalAPIError("grobid", resp.StatusCode, string(respBody), nil)
	}

	return respBody, nil
}

// buildMultipartBody assembles the multipart payload with the PDF under the
// field name "input", as the structure service expects.
func buildMultipartBody(pdfPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, "", fmt.Errorf("grobid: open document: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="input"; filename=%q`, filepath.Base(pdfPath)),
	}
	header["Content-Type"] = []string{"application/pdf"}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("grobid: create multipart field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("grobid: copy document into payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("grobid: finalize multipart payload: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
