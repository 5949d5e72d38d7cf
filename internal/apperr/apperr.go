// Package apperr はジョブの失敗理由として利用者に返す分類済みエラーを定義します。
//
// *Error 以外のエラーは "unexpected error" として報告し、内部の詳細は外に出しません。
package apperr

import (
	"errors"
	"fmt"
)

// Code はメッセージとは独立にエラーの種類を表します。
type Code string

const (
	CodeConcurrencyNotInteger  Code = "CONCURRENCY_NOT_INTEGER"
	CodeConcurrencyNotPositive Code = "CONCURRENCY_NOT_POSITIVE"
	CodeConcurrencyTooLarge    Code = "CONCURRENCY_TOO_LARGE"
	CodeInvalidURL             Code = "INVALID_URL"
	CodeSchemeNotHTTP          Code = "SCHEME_NOT_HTTP"
	CodeRemote                 Code = "REMOTE_ERROR"
	CodeEmptyData              Code = "EMPTY_DATA"
	CodeMalformedData          Code = "MALFORMED_DATA"
	CodeTokenTooLong           Code = "TOKEN_TOO_LONG"
)

// UnexpectedMessage は分類されていない失敗に対して返す文言です。
const UnexpectedMessage = "unexpected error"

// Error は分類済みのエラーです。Err はログ用に元のエラーを保持し、Message には含めません。
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is は Code で比較します。Wrap したものやパラメータ入りのメッセージも同じ種類として扱います。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 入力検証エラー
var (
	ErrConcurrencyNotInteger  = &Error{Code: CodeConcurrencyNotInteger, Message: "concurrency must be integer"}
	ErrConcurrencyNotPositive = &Error{Code: CodeConcurrencyNotPositive, Message: "concurrency must be positive"}
	ErrConcurrencyTooLarge    = &Error{Code: CodeConcurrencyTooLarge, Message: "concurrency is too large"}
	ErrInvalidURL             = &Error{Code: CodeInvalidURL, Message: "invalid URL"}
	ErrSchemeNotHTTP          = &Error{Code: CodeSchemeNotHTTP, Message: "URL must be a HTTP resource"}
)

// 取得エラー
var (
	ErrRemote    = &Error{Code: CodeRemote, Message: "remote error"}
	ErrEmptyData = &Error{Code: CodeEmptyData, Message: "data seems empty"}
)

// 解析エラー
var (
	ErrMalformedData = &Error{Code: CodeMalformedData, Message: "incorrect data"}
	ErrTokenTooLong  = &Error{Code: CodeTokenTooLong, Message: "data token too long"}
)

// ConcurrencyTooLarge は上限値をメッセージに含めた ErrConcurrencyTooLarge を返します。
func ConcurrencyTooLarge(max int) *Error {
	return &Error{
		Code:    CodeConcurrencyTooLarge,
		Message: fmt.Sprintf("concurrency must be less than %d", max),
	}
}

// Wrap は kind の複製に cause を付けて返します。
func Wrap(kind *Error, cause error) *Error {
	return &Error{Code: kind.Code, Message: kind.Message, Err: cause}
}

// PublicMessage は利用者に返してよいメッセージを返します。
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return UnexpectedMessage
}
