package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/KodaTao/DayPlanner/pkg/observability"
	"github.com/KodaTao/DayPlanner/pkg/types"
)

// 首页
func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// bindRequest 解析请求体，失败时已写入 400 响应
func bindRequest(c *gin.Context) (*types.ScheduleRequest, bool) {
	var req types.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		code := CodeInvalidRequest
		msg := "Invalid request: " + err.Error()
		if isMissingPrompt(err) {
			code = CodeMissingPrompt
			msg = "prompt is required"
		}
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: msg, Code: code})
		return nil, false
	}
	return &req, true
}

// isMissingPrompt 请求体为空，或 prompt 字段缺失或为 null
func isMissingPrompt(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) || errors.Is(err, io.EOF)
}

// 生成日程
func (s *Server) generateSchedule(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	resp, err := s.planner.Generate(c.Request.Context(), *req.Prompt)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// 流式生成日程（SSE）
// 事件：chunk 为模型片段，schedule 为最终信封，error 为失败
func (s *Server) generateScheduleStream(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	events, err := s.planner.GenerateStream(c.Request.Context(), *req.Prompt)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	// 客户端断开时 planner 会关闭 events
	for ev := range events {
		switch {
		case ev.Err != nil:
			_, code := errorStatus(ev.Err)
			observability.ErrorContext(c.Request.Context(), "Schedule stream failed", "error", ev.Err, "code", code)
			c.SSEvent("error", errorResponse(ev.Err, code))
		case ev.Schedule != nil:
			c.SSEvent("schedule", ev.Schedule)
		default:
			c.SSEvent("chunk", gin.H{"content": ev.Content})
		}
		c.Writer.Flush()
	}
}

// fail 记录日志并写入错误响应
func (s *Server) fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		observability.ErrorContext(c.Request.Context(), "Schedule generation failed", "error", err, "code", code)
	} else {
		observability.WarnContext(c.Request.Context(), "Schedule request rejected", "error", err, "code", code)
	}
	c.JSON(status, errorResponse(err, code))
}
