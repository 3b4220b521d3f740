package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	ownerKey     contextKey = "owner_email"
	pdfHashKey   contextKey = "pdf_hash"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithOwner adds the authenticated uploader identity to the context.
func WithOwner(ctx context.Context, ownerEmail string) context.Context {
	return context.WithValue(ctx, ownerKey, ownerEmail)
}

// OwnerFromContext retrieves the uploader identity from context.
// Returns empty string if not present.
func OwnerFromContext(ctx context.Context) string {
	if v := ctx.Value(ownerKey); v != nil {
		if owner, ok := v.(string); ok {
			return owner
		}
	}
	return ""
}

// WithPDFHash adds the document content hash to the context.
func WithPDFHash(ctx context.Context, pdfHash string) context.Context {
	return context.WithValue(ctx, pdfHashKey, pdfHash)
}

// PDFHashFromContext retrieves the document content hash from context.
// Returns empty string if not present.
func PDFHashFromContext(ctx context.Context) string {
	if v := ctx.Value(pdfHashKey); v != nil {
		if hash, ok := v.(string); ok {
			return hash
		}
	}
	return ""
}
