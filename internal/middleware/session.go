// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/tpodo/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey     = contextKey("user_id")
	sessionIDContextKey  = contextKey("session_id")
	authMethodContextKey = contextKey("auth_method")
	requestInfoKey       = contextKey("request_info")
)

// AuthMethod はリクエストの認証方式。
type AuthMethod string

const (
	AuthMethodCookie AuthMethod = "cookie"
	AuthMethodBearer AuthMethod = "bearer"
)

// requestInfo は外側のミドルウェアへ認証結果を伝えるための可変ホルダー。
// ロギングミドルウェアが生成し、セッションミドルウェアが埋める。
type requestInfo struct {
	userID     string
	authMethod AuthMethod
}

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はCookieまたはAuthorization: BearerヘッダーからセッションIDを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーID、セッションID、認証方式をリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, method := SessionIDFromRequest(r)
			if sessionID == "" {
				writeUnauthorized(w)
				return
			}

			session, err := sessionFinder.FindByID(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w)
				return
			}
			if session == nil {
				writeUnauthorized(w)
				return
			}

			if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
				info.userID = session.UserID
				info.authMethod = method
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
			ctx = context.WithValue(ctx, sessionIDContextKey, session.ID)
			ctx = context.WithValue(ctx, authMethodContextKey, method)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromRequest はBearerトークンを優先してリクエストからセッションIDを取り出す。
// セッションの有効性は検証しない。
func SessionIDFromRequest(r *http.Request) (string, AuthMethod) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token), AuthMethodBearer
		}
		return "", ""
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", ""
	}
	return cookie.Value, AuthMethodCookie
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok && id != ""
}

// AuthMethodFromContext はリクエストの認証方式を返す。未認証の場合は空文字。
func AuthMethodFromContext(ctx context.Context) AuthMethod {
	m, _ := ctx.Value(authMethodContextKey).(AuthMethod)
	return m
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithSession はセッションIDと認証方式をコンテキストに注入する。
func ContextWithSession(ctx context.Context, sessionID string, method AuthMethod) context.Context {
	ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
	return context.WithValue(ctx, authMethodContextKey, method)
}

// withRequestInfo はリクエスト情報ホルダーを取得し、なければ生成してコンテキストに載せる。
func withRequestInfo(r *http.Request) (*http.Request, *requestInfo) {
	if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
		return r, info
	}
	info := &requestInfo{}
	return r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)), info
}
