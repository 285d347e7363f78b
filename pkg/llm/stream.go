package llm

import (
	"context"
	"errors"
)

// SendChunk 向流写入片段，调用方 context 结束时放弃并返回 false
func SendChunk(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// StreamDeadlineError 检查流式调用是否因 llm.timeout 中断
// parent 是调用方的 context，stream 是带超时的派生 context
// 部分 SDK 在读取中断时直接结束迭代而不返回错误，需要在结束后单独检查
func StreamDeadlineError(provider string, parent, stream context.Context) error {
	if parent.Err() != nil {
		return nil
	}
	if errors.Is(stream.Err(), context.DeadlineExceeded) {
		return &UpstreamError{Provider: provider, Kind: KindTimeout, Err: context.DeadlineExceeded}
	}
	return nil
}
