package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, entry, project, team, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidTimestamp   = "INVALID_TIMESTAMP"
	ErrCodeInvalidRange       = "INVALID_RANGE"
	ErrCodeEntryNotFound      = "ENTRY_NOT_FOUND"
	ErrCodeProjectNotFound    = "PROJECT_NOT_FOUND"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeTeamNotFound       = "TEAM_NOT_FOUND"
	ErrCodePersonNotFound     = "PERSON_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSetupCompleted     = "SETUP_COMPLETED"
	ErrCodeInvalidOTP         = "INVALID_OTP"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidVisibility  = "INVALID_VISIBILITY"
	ErrCodeInvalidTaskStatus  = "INVALID_TASK_STATUS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeCSRFInvalid        = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidTimestampError は日時の形式が不正な場合のエラーを生成する。
func NewInvalidTimestampError(field, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimestamp,
		Message:  fmt.Sprintf("%s の日時形式が不正です: %s", field, value),
		Category: "validation",
		Action:   "RFC 3339形式（例: 2024-01-01T09:00:00Z）で指定してください。",
	}
}

// NewInvalidRangeError は開始と終了の順序が逆転している場合のエラーを生成する。
func NewInvalidRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRange,
		Message:  "終了日時が開始日時より前になっています。",
		Category: "validation",
		Action:   "終了日時は開始日時以降を指定してください。",
	}
}

// NewEntryNotFoundError は作業記録が見つからない場合のエラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された作業記録が見つかりません: %s", entryID),
		Category: "entry",
		Action:   "作業記録IDを確認してください。",
	}
}

// NewProjectNotFoundError はプロジェクトが見つからない場合のエラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "project",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewTaskNotFoundError はタスクが見つからない場合のエラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "project",
		Action:   "タスクIDを確認してください。",
	}
}

// NewTeamNotFoundError はチームが見つからない場合のエラーを生成する。
func NewTeamNotFoundError(teamID string) *APIError {
	return &APIError{
		Code:     ErrCodeTeamNotFound,
		Message:  fmt.Sprintf("指定されたチームが見つかりません: %s", teamID),
		Category: "team",
		Action:   "チームIDを確認してください。",
	}
}

// NewPersonNotFoundError はメンバー名簿の登録が見つからない場合のエラーを生成する。
func NewPersonNotFoundError(personID string) *APIError {
	return &APIError{
		Code:     ErrCodePersonNotFound,
		Message:  fmt.Sprintf("指定された人物が見つかりません: %s", personID),
		Category: "team",
		Action:   "IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUserExistsError は同じメールアドレスのユーザーが既に存在する場合のエラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidCredentialsError は認証情報が一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewSetupCompletedError は初期セットアップ済みの場合のエラーを生成する。
func NewSetupCompletedError() *APIError {
	return &APIError{
		Code:     ErrCodeSetupCompleted,
		Message:  "初期セットアップは既に完了しています。",
		Category: "auth",
		Action:   "既存の管理者アカウントでログインしてください。",
	}
}

// NewInvalidOTPError はワンタイムコードが不正または期限切れの場合のエラーを生成する。
func NewInvalidOTPError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOTP,
		Message:  "確認コードが正しくないか、有効期限が切れています。",
		Category: "auth",
		Action:   "確認コードを再発行してください。",
	}
}

// NewWeakPasswordError はパスワードが短すぎる場合のエラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("パスワードは%d文字以上で指定してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを入力してください。",
	}
}

// NewInvalidVisibilityError は公開範囲の値が不正な場合のエラーを生成する。
func NewInvalidVisibilityError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVisibility,
		Message:  fmt.Sprintf("無効な公開範囲です: %s", value),
		Category: "validation",
		Action:   "公開範囲には everyone、members、team_leader、disabled のいずれかを指定してください。",
	}
}

// NewInvalidTaskStatusError はタスク状態の値が不正な場合のエラーを生成する。
func NewInvalidTaskStatusError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTaskStatus,
		Message:  fmt.Sprintf("無効なタスク状態です: %s", value),
		Category: "validation",
		Action:   "状態には open または completed を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUnauthorizedError は未認証のリクエストに対するエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFInvalidError はCSRFトークンの検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
