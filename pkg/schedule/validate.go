package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
)

// ErrInvalidSchedule 模型输出不符合事件结构
var ErrInvalidSchedule = errors.New("invalid schedule")

// ValidationError 校验失败的详细信息
type ValidationError struct {
	Schema  Schema
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s schedule: %s", e.Schema, strings.Join(e.Details, "; "))
}

// Is 支持 errors.Is(err, ErrInvalidSchedule)
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSchedule
}

// Result 校验结果
type Result struct {
	// Normalized 紧凑的 JSON 数组文本
	Normalized string
	// Events 事件数量
	Events int
	// Repaired 是否经过了修复
	Repaired bool
}

// Validator 事件数组校验器
type Validator struct {
	schema   Schema
	compiled *jsonschema.Schema
}

// NewValidator 编译指定结构的 JSON Schema
func NewValidator(schema Schema) (*Validator, error) {
	raw, err := json.Marshal(schema.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON Schema: %w", err)
	}

	return &Validator{schema: schema, compiled: compiled}, nil
}

// Schema 返回校验器对应的结构
func (v *Validator) Schema() Schema {
	return v.schema
}

// Validate 提取、修复并校验模型输出
func (v *Validator) Validate(text string) (*Result, error) {
	array, repaired, err := ExtractArray(text)
	if err != nil {
		return nil, &ValidationError{Schema: v.schema, Details: []string{err.Error()}}
	}

	var data []any
	if err := json.Unmarshal([]byte(array), &data); err != nil {
		return nil, &ValidationError{Schema: v.schema, Details: []string{"top level value is not an array"}}
	}

	result := v.compiled.Validate(data)
	if !result.IsValid() {
		details := make([]string, 0, len(result.Errors))
		for field, e := range result.Errors {
			details = append(details, fmt.Sprintf("%s: %s", field, e.Message))
		}
		sort.Strings(details)
		return nil, &ValidationError{Schema: v.schema, Details: details}
	}

	if details := v.checkOrder(data); len(details) > 0 {
		return nil, &ValidationError{Schema: v.schema, Details: details}
	}

	normalized, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Normalized: string(normalized),
		Events:     len(data),
		Repaired:   repaired,
	}, nil
}

// checkOrder 检查每个事件的结束时间不早于开始时间
func (v *Validator) checkOrder(data []any) []string {
	var details []string
	for i, item := range data {
		event, ok := item.(map[string]any)
		if !ok {
			continue
		}

		var start, end time.Time
		var okStart, okEnd bool
		switch v.schema {
		case SchemaDaySlot:
			day, _ := event["day"].(string)
			st, _ := event["startTime"].(string)
			et, _ := event["endTime"].(string)
			start, okStart = parseTimestamp(day + "T" + padTime(st))
			end, okEnd = parseTimestamp(day + "T" + padTime(et))
		default:
			s, _ := event["start"].(string)
			e, _ := event["end"].(string)
			start, okStart = parseTimestamp(s)
			end, okEnd = parseTimestamp(e)
		}

		if !okStart || !okEnd {
			details = append(details, fmt.Sprintf("event %d: unparseable timestamp", i))
			continue
		}
		if end.Before(start) {
			details = append(details, fmt.Sprintf("event %d: ends before it starts", i))
		}
	}
	return details
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// padTime 将 7:00 补齐为 07:00
func padTime(s string) string {
	if i := strings.Index(s, ":"); i == 1 {
		return "0" + s
	}
	return s
}
