// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力する自由記述欄（作業記録のタイトル、
// タスク名、説明文など）からマークアップを取り除く。
// bluemondayの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由記述欄のサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Text は全てのタグを除去したプレーンテキストを返す。前後の空白も除去する。
	Text(raw string) string
	// RichText は説明文向けに限られたタグのみを残したHTMLを返す。
	// 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"を付与する。
	RichText(raw string) string
}

// sanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type sanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &sanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   newRichTextPolicy(),
	}
}

func newRichTextPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool { return true })
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return p
}

// Text は全てのタグを除去したプレーンテキストを返す。
// エスケープされた文字（&amp;など）は元の文字に戻す。
func (s *sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// RichText は限られたタグのみを残したHTMLを返す。
func (s *sanitizer) RichText(raw string) string {
	return strings.TrimSpace(s.rich.Sanitize(raw))
}
