// Package schedule 定义模型输出的日程事件结构，并提供提取与校验
package schedule

import (
	"fmt"
	"reflect"
	"strings"
)

// Schema 要求模型输出的事件结构
type Schema string

const (
	// SchemaDateTime start/end 为完整的 ISO-8601 时间
	SchemaDateTime Schema = "datetime"
	// SchemaDaySlot day + startTime/endTime 分开表示
	SchemaDaySlot Schema = "dayslot"
)

// DateTimeEvent datetime 结构的事件
type DateTimeEvent struct {
	Start string `json:"start" format:"YYYY-MM-DDTHH:mm:ss" pattern:"^\\d{4}-\\d{2}-\\d{2}T\\d{2}:\\d{2}(:\\d{2})?$" required:"true"`
	End   string `json:"end" format:"YYYY-MM-DDTHH:mm:ss" pattern:"^\\d{4}-\\d{2}-\\d{2}T\\d{2}:\\d{2}(:\\d{2})?$" required:"true"`
	Title string `json:"title" format:"event title" required:"true"`
}

// DaySlotEvent dayslot 结构的事件
type DaySlotEvent struct {
	Day       string `json:"day" format:"YYYY-MM-DD" pattern:"^\\d{4}-\\d{2}-\\d{2}$" required:"true"`
	StartTime string `json:"startTime" format:"HH:mm" pattern:"^\\d{1,2}:\\d{2}(:\\d{2})?$" required:"true"`
	EndTime   string `json:"endTime" format:"HH:mm" pattern:"^\\d{1,2}:\\d{2}(:\\d{2})?$" required:"true"`
	Title     string `json:"title" format:"event title" required:"true"`
}

// ParseSchema 解析配置中的结构名称
func ParseSchema(s string) (Schema, error) {
	switch Schema(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemaDateTime:
		return SchemaDateTime, nil
	case SchemaDaySlot:
		return SchemaDaySlot, nil
	default:
		return "", fmt.Errorf("unsupported schedule schema: %q", s)
	}
}

// EventType 返回事件结构体类型
func (s Schema) EventType() reflect.Type {
	if s == SchemaDaySlot {
		return reflect.TypeOf(DaySlotEvent{})
	}
	return reflect.TypeOf(DateTimeEvent{})
}

// Fields 返回事件字段信息
func (s Schema) Fields() []FieldInfo {
	return ExtractFields(s.EventType())
}

// Example 返回嵌入系统指令的示例结构
//
//	[
//	  {
//	    'start': 'YYYY-MM-DDTHH:mm:ss',
//	    ...
//	  },
//	  ...
//	]
func (s Schema) Example() string {
	fields := s.Fields()

	var b strings.Builder
	b.WriteString("[\n  {\n")
	for i, f := range fields {
		fmt.Fprintf(&b, "    '%s': '%s'", f.Name, f.Format)
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  },\n  ...\n]")
	return b.String()
}
