package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/catalog/internal/core"
)

// withRequestMetadata copies the caller's address and user agent onto ctx
// so the import and maintenance logs can name who triggered them.
func withRequestMetadata(r *http.Request) context.Context {
	ctx := core.ContextWithClientIP(r.Context(), r.RemoteAddr) // resolved by TrustedRealIP
	return core.ContextWithUserAgent(ctx, r.UserAgent())
}
