// Package types 提供跨包共享的类型定义
package types

import "context"

// ScheduleRequest 日程生成请求
// Prompt 为指针以区分字段缺失和空字符串，空字符串原样转发
type ScheduleRequest struct {
	Prompt *string `json:"prompt" binding:"required"`
}

// ScheduleResponse 日程响应信封
// Schedule 是模型返回的原始文本（去除首尾空白），默认不做校验
type ScheduleResponse struct {
	Schedule string `json:"schedule"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StreamEvent 流式生成事件
// 中间事件只有 Content，最后一个事件带 Schedule 或 Err
type StreamEvent struct {
	Content  string
	Schedule *ScheduleResponse
	Err      error
}

// Planner 接口定义
// 用于解耦 server、telegram 包对 planner 包的直接依赖
type Planner interface {
	Generate(ctx context.Context, prompt string) (*ScheduleResponse, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan StreamEvent, error)
}
