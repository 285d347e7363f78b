package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/schedule"
	"github.com/KodaTao/DayPlanner/pkg/types"
)

// 错误码
const (
	CodeMissingPrompt         = "missing_prompt"
	CodeInvalidRequest        = "invalid_request"
	CodeCredentialUnavailable = "credential_unavailable"
	CodeInvalidSchedule       = "invalid_schedule"
	CodeTimeout               = "timeout"
	CodeCanceled              = "request_canceled"
	CodeInternal              = "internal_error"
)

// errorStatus 把处理错误映射为 HTTP 状态码和错误码
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrCredentialUnavailable):
		return http.StatusServiceUnavailable, CodeCredentialUnavailable
	case errors.Is(err, schedule.ErrInvalidSchedule):
		return http.StatusUnprocessableEntity, CodeInvalidSchedule
	}

	switch kind := llm.KindOf(err); kind {
	case llm.KindTimeout:
		return http.StatusGatewayTimeout, CodeTimeout
	case "":
	default:
		return http.StatusBadGateway, string(kind)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, CodeCanceled
	}
	return http.StatusInternalServerError, CodeInternal
}

// errorResponse 构造错误响应体
// 上游错误只暴露类型，不回显上游返回的内容
func errorResponse(err error, code string) types.ErrorResponse {
	msg := err.Error()
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		msg = "upstream request failed: " + string(upErr.Kind)
	}
	if errors.Is(err, llm.ErrCredentialUnavailable) {
		msg = "upstream credential is not configured"
	}
	return types.ErrorResponse{Error: msg, Code: code}
}
