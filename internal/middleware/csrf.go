package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

const (
	// csrfCookieName はダブルサブミット用のトークンCookie。フロントエンドが読むためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	defaultCSRFMaxAge = 24 * time.Hour
)

// CSRFConfig はCSRFトークンCookieの属性。MaxAgeが0なら24時間。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       time.Duration
}

func (c CSRFConfig) cookie(token string) *http.Cookie {
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCSRFMaxAge
	}
	return &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.CookieDomain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCSRFMiddleware はCookie認証のリクエストに対してダブルサブミットトークンを検証する。
// GET/HEAD/OPTIONSは検証せず、トークンCookieがなければ発行する。
// Bearer認証のリクエストはブラウザが自動送信する資格情報を持たないので検証しない。
// セッションミドルウェアの内側に置くこと。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case AuthMethodFromContext(r.Context()) == AuthMethodBearer:
			case isSafeMethod(r.Method):
				if !hasCSRFCookie(r) {
					issueCSRFCookie(w, config)
				}
			default:
				if reason := checkCSRFToken(r); reason != "" {
					userID, _ := UserIDFromContext(r.Context())
					slog.Warn("CSRF validation failed",
						slog.String("reason", reason),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("user_id", userID),
					)
					WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkCSRFToken はCookieとヘッダーのトークンを比較し、不一致の理由を返す。一致すれば空文字。
func checkCSRFToken(r *http.Request) string {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" {
		return "missing_cookie"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing_header"
	}
	if subtle.ConstantTimeCompare([]byte(c.Value), []byte(header)) != 1 {
		return "mismatch"
	}
	return ""
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラー。
// 既存のトークンCookieがあればその値を、なければ新しく発行した値を {"token": ...} で返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(csrfCookieName); err == nil {
			token = c.Value
		}
		if token == "" {
			token = issueCSRFCookie(w, config)
			if token == "" {
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{token})
	})
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func hasCSRFCookie(r *http.Request) bool {
	_, err := r.Cookie(csrfCookieName)
	return err == nil
}

// issueCSRFCookie は新しいトークンをCookieに設定して返す。生成に失敗した場合は空文字。
func issueCSRFCookie(w http.ResponseWriter, config CSRFConfig) string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return ""
	}
	token := hex.EncodeToString(b)
	http.SetCookie(w, config.cookie(token))
	return token
}
