package rbac

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/aegisgate/aegisgate/internal/platform/httpx"
	"github.com/aegisgate/aegisgate/internal/shared"
)

// Middleware wires authorization checks in front of HTTP handlers. A denial
// short-circuits with 403 before any handler logic runs.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// Require ensures the current user holds the named permission.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return m.RequireAny(permission)
}

// RequireAny ensures the current user holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
				return
			}
			for _, perm := range normalized {
				allowed, err := m.Gate.Check(r.Context(), userID, perm)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("authorization check", slog.Any("error", err))
					}
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
					return
				}
				if allowed {
					ctx := shared.ContextWithActor(r.Context(), userID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required permission")
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, seen := unique[p]; seen {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
