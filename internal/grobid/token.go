package grobid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// metadataIdentityURL is the GCE metadata server endpoint that mints signed
// ID tokens for service-to-service calls.
const metadataIdentityURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/identity"

// TokenSource supplies a bearer credential scoped to a target audience
// (the structure service base URL). The call is an opaque synchronous
// operation that may fail; no retry is built in at this layer.
type TokenSource interface {
	Token(ctx context.Context, audience string) (string, error)
}

// StaticTokenSource returns a fixed token regardless of audience. Intended
// for tests and for deployments where the credential is provisioned
// out-of-band.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(_ context.Context, _ string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("grobid: static token is empty")
	}
	return string(s), nil
}

// MetadataTokenSource fetches identity tokens from the GCE metadata server.
// Tokens are not cached; the metadata server already serves cached tokens
// and callers are low-frequency.
type MetadataTokenSource struct {
	httpClient *http.Client
	endpoint   string
}

// NewMetadataTokenSource creates a metadata-server token source. endpoint
// overrides the default metadata URL when non-empty (used in tests).
func NewMetadataTokenSource(endpoint string) *MetadataTokenSource {
	if endpoint == "" {
		endpoint = metadataIdentityURL
	}
	return &MetadataTokenSource{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
	}
}

// Token implements TokenSource by requesting a signed ID token for the
// given audience.
func (m *MetadataTokenSource) Token(ctx context.Context, audience string) (string, error) {
	if audience == "" {
		return "", fmt.Errorf("grobid: token audience is required")
	}

	endpoint := m.endpoint + "?" + url.Values{"audience": {audience}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("grobid: create token request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("grobid: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("grobid: read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("grobid: metadata server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("grobid: metadata server returned an empty token")
	}
	return token, nil
}
