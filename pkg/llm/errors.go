package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind 上游错误类型
type ErrorKind string

const (
	KindAuth          ErrorKind = "upstream_auth"
	KindRateLimited   ErrorKind = "upstream_rate_limited"
	KindUnavailable   ErrorKind = "upstream_unavailable"
	KindTimeout       ErrorKind = "upstream_timeout"
	KindBadResponse   ErrorKind = "upstream_bad_response"
	KindUpstreamOther ErrorKind = "upstream_error"
)

// ErrEmptyResponse 上游没有返回任何候选
var ErrEmptyResponse = errors.New("no choices in response")

// UpstreamError 上游调用失败
type UpstreamError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int // 没有 HTTP 响应时为 0
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError 根据 HTTP 状态码和底层错误构造 UpstreamError
func NewUpstreamError(provider string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Provider:   provider,
		Kind:       classify(statusCode, err),
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewBadResponseError 上游响应无法使用
func NewBadResponseError(provider string, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Kind: KindBadResponse, Err: err}
}

func classify(statusCode int, err error) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindUnavailable
	case statusCode != 0:
		return KindUpstreamOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindUnavailable
	}
	return KindUpstreamOther
}

// KindOf 返回错误的上游类型，非上游错误返回空字符串
func KindOf(err error) ErrorKind {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Kind
	}
	return ""
}
