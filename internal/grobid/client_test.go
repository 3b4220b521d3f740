package grobid

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

func writeTestPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 test document"), 0o644))
	return path
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return NewClient(Config{BaseURL: serverURL}, StaticTokenSource("test-token"), zerolog.Nop())
}

func TestOptionsPresets(t *testing.T) {
	t.Run("methods preset omits citation consolidation", func(t *testing.T) {
		q := MethodsOptions().query()
		assert.Equal(t, "1", q.Get("consolidateHeader"))
		assert.Equal(t, "0", q.Get("consolidateCitations"))
		assert.Equal(t, "detailed", q.Get("segmentation"))
		assert.Equal(t, "1", q.Get("generateTeiIds"))
		assert.Empty(t, q.Get("generateIDs"))
		assert.Empty(t, q.Get("includeRawCitations"))
		assert.Empty(t, q.Get("teiCoordinates"))
	})

	t.Run("references preset enables citation consolidation and coordinates", func(t *testing.T) {
		q := ReferencesOptions().query()
		assert.Equal(t, "1", q.Get("consolidateHeader"))
		assert.Equal(t, "1", q.Get("consolidateCitations"))
		assert.Equal(t, "1", q.Get("includeRawCitations"))
		assert.Equal(t, "1", q.Get("generateIDs"))
		assert.Empty(t, q.Get("generateTeiIds"))
		assert.Equal(t, "biblStruct", q.Get("teiCoordinates"))
		assert.Equal(t, "detailed", q.Get("segmentation"))
	})
}

func TestClient_ProcessFulltext(t *testing.T) {
	t.Run("successful call returns markup body", func(t *testing.T) {
		const tei = `<?xml version="1.0"?><TEI><text/></TEI>`
		var gotAuth, gotAccept, gotPath, gotQuery string
		var gotFilename, gotFieldContentType string
		var gotBody []byte

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotAccept = r.Header.Get("Accept")
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery

			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, header, err := r.FormFile("input")
			require.NoError(t, err)
			defer file.Close()
			gotFilename = header.Filename
			gotFieldContentType = header.Header.Get("Content-Type")
			gotBody, err = io.ReadAll(file)
			require.NoError(t, err)

			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(tei))
		}))
		t.Cleanup(server.Close)

		client := newTestClient(t, server.URL)
		body, err := client.ProcessFulltext(context.Background(), writeTestPDF(t), ReferencesOptions())

		require.NoError(t, err)
		assert.Equal(t, tei, string(body))
		assert.Equal(t, "Bearer test-token", gotAuth)
		assert.Equal(t, "application/xml", gotAccept)
		assert.Equal(t, "/api/processFulltextDocument", gotPath)
		assert.Contains(t, gotQuery, "consolidateCitations=1")
		assert.Equal(t, "paper.pdf", gotFilename)
		assert.Equal(t, "application/pdf", gotFieldContentType)
		assert.Equal(t, []byte("%PDF-1.7 test document"), gotBody)
	})

	t.Run("missing file fails fast without a network call", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		t.Cleanup(server.Close)

		client := newTestClient(t, server.URL)
		_, err := client.ProcessFulltext(context.Background(), "/nonexistent/paper.pdf", MethodsOptions())

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrFileNotFound))
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("non-200 response becomes a typed error with status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("worker pool exhausted"))
		}))
		t.Cleanup(server.Close)

		client := newTestClient(t, server.URL)
		_, err := client.ProcessFulltext(context.Background(), writeTestPDF(t), MethodsOptions())

		require.Error(t, err)
		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, "worker pool exhausted", apiErr.Message)
		assert.Equal(t, "grobid", apiErr.Source)
	})

	t.Run("token source failure propagates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		t.Cleanup(server.Close)

		client := NewClient(Config{BaseURL: server.URL}, StaticTokenSource(""), zerolog.Nop())
		_, err := client.ProcessFulltext(context.Background(), writeTestPDF(t), MethodsOptions())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "identity token")
	})
}

func TestMetadataTokenSource(t *testing.T) {
	t.Run("requests a token for the audience", func(t *testing.T) {
		var gotFlavor, gotAudience string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotFlavor = r.Header.Get("Metadata-Flavor")
			gotAudience = r.URL.Query().Get("audience")
			w.Write([]byte("signed-id-token\n"))
		}))
		t.Cleanup(server.Close)

		source := NewMetadataTokenSource(server.URL)
		token, err := source.Token(context.Background(), "https://grobid.example.com")

		require.NoError(t, err)
		assert.Equal(t, "signed-id-token", token)
		assert.Equal(t, "Google", gotFlavor)
		assert.Equal(t, "https://grobid.example.com", gotAudience)
	})

	t.Run("non-200 from the metadata server is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("not allowed"))
		}))
		t.Cleanup(server.Close)

		source := NewMetadataTokenSource(server.URL)
		_, err := source.Token(context.Background(), "https://grobid.example.com")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("empty audience is rejected", func(t *testing.T) {
		source := NewMetadataTokenSource("http://unused.example.com")
		_, err := source.Token(context.Background(), "")
		assert.Error(t, err)
	})
}
