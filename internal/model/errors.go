// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, draft, newsletter, subscriber, integration, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeSSRFBlocked           = "SSRF_BLOCKED"
	ErrCodeFetchFailed           = "FETCH_FAILED"
	ErrCodeParseFailed           = "PARSE_FAILED"
	ErrCodeFeedNotDetected       = "FEED_NOT_DETECTED"
	ErrCodeFeedNotFound          = "FEED_NOT_FOUND"
	ErrCodeDraftNotFound         = "DRAFT_NOT_FOUND"
	ErrCodeDraftNotSchedulable   = "DRAFT_NOT_SCHEDULABLE"
	ErrCodeNoArticles            = "NO_ARTICLES"
	ErrCodeNotionNotConnected    = "NOTION_NOT_CONNECTED"
	ErrCodeNewsletterNotFound    = "NEWSLETTER_NOT_FOUND"
	ErrCodeNewsletterNotSendable = "NEWSLETTER_NOT_SENDABLE"
	ErrCodeNewsletterNotCancel   = "NEWSLETTER_NOT_CANCELLABLE"
	ErrCodeNoActiveSubscribers   = "NO_ACTIVE_SUBSCRIBERS"
	ErrCodeSubscriberNotFound    = "SUBSCRIBER_NOT_FOUND"
	ErrCodeDuplicateSubscriber   = "DUPLICATE_SUBSCRIBER"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeDuplicateUser         = "DUPLICATE_USER"
	ErrCodePasswordMismatch      = "PASSWORD_MISMATCH"
	ErrCodeDraftInUse            = "DRAFT_IN_USE"
	ErrCodeIntegration           = "INTEGRATION_FAILED"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeCSRF                  = "CSRF_FAILED"
	ErrCodeRateLimited           = "RATE_LIMITED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewValidationError は必須項目不足などの入力エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewFeedNotDetectedError はHTMLページからフィードリンクを検出できなかった場合のエラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "feed",
		Action:   "RSS/AtomフィードのURLを直接入力するか、種別を webpage にして登録してください。",
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  "指定されたフィードが見つかりません。",
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewDraftNotFoundError は下書き未検出エラーを生成する。
func NewDraftNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDraftNotFound,
		Message:  "指定された下書きが見つかりません。",
		Category: "draft",
		Action:   "下書きIDを確認してください。",
	}
}

// NewDraftNotSchedulableError は draft 状態でない下書きを予約しようとした場合のエラーを生成する。
func NewDraftNotSchedulableError() *APIError {
	return &APIError{
		Code:     ErrCodeDraftNotSchedulable,
		Message:  "この下書きは既に予約済みまたは配信済みです。",
		Category: "draft",
		Action:   "予約を取り消すか、別の下書きを選択してください。",
	}
}

// NewDraftInUseError は予約中の下書きを削除しようとした場合のエラーを生成する。
func NewDraftInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeDraftInUse,
		Message:  "予約中の下書きは削除できません。",
		Category: "draft",
		Action:   "先にニュースレターの予約を取り消してください。",
	}
}

// NewNoArticlesError は下書き生成対象の記事が1件もない場合のエラーを生成する。
func NewNoArticlesError() *APIError {
	return &APIError{
		Code:     ErrCodeNoArticles,
		Message:  "有効な記事が見つかりません。",
		Category: "validation",
		Action:   "下書きを生成する記事を1件以上選択してください。",
	}
}

// NewNotionNotConnectedError はNotion未連携の下書きを同期しようとした場合のエラーを生成する。
func NewNotionNotConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotionNotConnected,
		Message:  "この下書きはNotionと連携されていません。",
		Category: "draft",
		Action:   "設定画面でNotion APIキーを登録し、下書きを保存し直してください。",
	}
}

// NewNewsletterNotFoundError はニュースレター未検出エラーを生成する。
func NewNewsletterNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNewsletterNotFound,
		Message:  "指定されたニュースレターが見つかりません。",
		Category: "newsletter",
		Action:   "ニュースレターIDを確認してください。",
	}
}

// NewNewsletterNotSendableError は配信できない状態での送信要求エラーを生成する。
func NewNewsletterNotSendableError() *APIError {
	return &APIError{
		Code:     ErrCodeNewsletterNotSendable,
		Message:  "このニュースレターは現在送信できません。",
		Category: "newsletter",
		Action:   "予約中または送信失敗のニュースレターのみ送信できます。",
	}
}

// NewNewsletterNotCancellableError は予約中以外のニュースレターの取消要求エラーを生成する。
func NewNewsletterNotCancellableError() *APIError {
	return &APIError{
		Code:     ErrCodeNewsletterNotCancel,
		Message:  "予約中のニュースレターのみ取り消せます。",
		Category: "newsletter",
		Action:   "ニュースレターの状態を確認してください。",
	}
}

// NewNoActiveSubscribersError は有効な購読者がいない場合のエラーを生成する。
func NewNoActiveSubscribersError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveSubscribers,
		Message:  "有効な購読者がいません。",
		Category: "newsletter",
		Action:   "購読者を追加するか、無効化した購読者を有効にしてください。",
	}
}

// NewSubscriberNotFoundError は購読者未検出エラーを生成する。
func NewSubscriberNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSubscriberNotFound,
		Message:  "指定された購読者が見つかりません。",
		Category: "subscriber",
		Action:   "購読者IDを確認してください。",
	}
}

// NewDuplicateSubscriberError は登録済みメールアドレスを再登録しようとした場合のエラーを生成する。
func NewDuplicateSubscriberError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSubscriber,
		Message:  "このメールアドレスは既に購読者リストに登録されています。",
		Category: "subscriber",
		Action:   "購読者一覧を確認してください。",
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

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewDuplicateUserError はメールアドレスまたはユーザー名が登録済みの場合のエラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "このメールアドレスまたはユーザー名は既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスまたはユーザー名を指定してください。",
	}
}

// NewPasswordMismatchError はパスワード変更時の検証エラーを生成する。
func NewPasswordMismatchError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  reason,
		Category: "auth",
		Action:   "パスワードを確認して再度入力してください。",
	}
}

// NewIntegrationError は外部サービス（Notionなど）の呼び出し失敗エラーを生成する。
func NewIntegrationError(service, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeIntegration,
		Message:  fmt.Sprintf("%sとの連携に失敗しました: %s", service, reason),
		Category: "integration",
		Action:   "設定画面でAPIキーを確認し、しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
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

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエスト数が上限を超えました。",
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
