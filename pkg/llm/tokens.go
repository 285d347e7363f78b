package llm

import (
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding 模型未知时使用的编码
const fallbackEncoding = "cl100k_base"

// encodingWait 等待编码表加载的最长时间
// 冷缓存时 tiktoken 会下载 BPE 文件，且下载没有超时
var encodingWait = 2 * time.Second

// loadEncoding 加载模型对应的编码表
var loadEncoding = func(model string) (*tiktoken.Tiktoken, error) {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return tiktoken.GetEncoding(fallbackEncoding)
	}
	return tke, nil
}

type encodingEntry struct {
	ready chan struct{}
	tke   *tiktoken.Tiktoken
}

// encodings model -> *encodingEntry
var encodings sync.Map

// encodingFor 返回模型的编码表，未就绪时最多等待 encodingWait，超时返回 nil
// 每个模型同时只有一个加载过程，加载失败后下次调用重试
func encodingFor(model string) *tiktoken.Tiktoken {
	v, loaded := encodings.LoadOrStore(model, &encodingEntry{ready: make(chan struct{})})
	entry := v.(*encodingEntry)
	if !loaded {
		go func() {
			tke, err := loadEncoding(model)
			if err != nil {
				encodings.Delete(model)
			} else {
				entry.tke = tke
			}
			close(entry.ready)
		}()
	}

	timer := time.NewTimer(encodingWait)
	defer timer.Stop()

	select {
	case <-entry.ready:
		return entry.tke
	case <-timer.C:
		return nil
	}
}

// EstimateTokens 估算文本的 Token 数
// 用于上游不返回 usage 的场景（如流式响应），编码表不可用时返回 0
func EstimateTokens(model string, texts ...string) int {
	tke := encodingFor(model)
	if tke == nil {
		return 0
	}
	total := 0
	for _, t := range texts {
		total += len(tke.Encode(t, nil, nil))
	}
	return total
}

// EstimateUsage 基于对话和回复文本估算 Usage
func EstimateUsage(model string, messages []Message, reply string) Usage {
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Content)
	}
	prompt := EstimateTokens(model, texts...)
	completion := EstimateTokens(model, reply)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
