package schedule

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoArray 模型输出中找不到 JSON 数组
var ErrNoArray = errors.New("no JSON array found in model output")

// ExtractArray 从模型输出中截取 JSON 数组文本
// 模型经常在数组前后附带说明文字或代码块标记，或使用单引号
// 返回的 repaired 表示是否经过了修复
func ExtractArray(text string) (array string, repaired bool, err error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return "", false, ErrNoArray
	}

	candidate := text[start : end+1]
	if json.Valid([]byte(candidate)) {
		return candidate, false, nil
	}

	fixed, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return "", false, err
	}
	if !json.Valid([]byte(fixed)) {
		return "", false, ErrNoArray
	}
	return fixed, true, nil
}
