package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
	"github.com/zhouzirui/z-board/backend/pkg/utils"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	headerKey
)

// DefaultPrincipalHeader is used when no header name is configured.
const DefaultPrincipalHeader = "X-Principal"

// Principal 从上游认证网关写入的请求头中读取调用者身份，放入 context。
// 缺少身份的请求照常放行，由 RequirePrincipal 决定是否拒绝。
func Principal(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultPrincipalHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), headerKey, header)
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				ctx = WithPrincipal(ctx, message.Principal(id))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal 拒绝没有调用者身份的请求。
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			utils.RespondError(w, http.StatusUnauthorized, "caller identity is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal stores the caller identity in ctx.
func WithPrincipal(ctx context.Context, p message.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller identity attached by Principal.
func PrincipalFrom(ctx context.Context) (message.Principal, bool) {
	p, ok := ctx.Value(principalKey).(message.Principal)
	return p, ok && p != ""
}

func principalHeaderFrom(r *http.Request) string {
	if h, ok := r.Context().Value(headerKey).(string); ok && h != "" {
		return h
	}
	return DefaultPrincipalHeader
}
