package schedule

import (
	"reflect"
	"strings"
)

// FieldInfo 事件字段信息
type FieldInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Format   string `json:"format,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	Required bool   `json:"required"`
}

// ExtractFields 从结构体类型提取字段信息
// 使用反射读取字段和 tag
func ExtractFields(t reflect.Type) []FieldInfo {
	if t == nil {
		return nil
	}

	// 如果是指针，获取元素类型
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	// 只处理结构体类型
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []FieldInfo
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// 跳过非导出字段
		if field.PkgPath != "" {
			continue
		}

		// 递归处理嵌入的结构体
		if field.Anonymous {
			if field.Type.Kind() == reflect.Struct {
				fields = append(fields, ExtractFields(field.Type)...)
			}
			continue
		}

		name := getFieldName(field)
		if name == "" {
			continue
		}

		fields = append(fields, FieldInfo{
			Name:     name,
			Type:     getTypeName(field.Type),
			Format:   field.Tag.Get("format"),
			Pattern:  field.Tag.Get("pattern"),
			Required: field.Tag.Get("required") == "true",
		})
	}

	return fields
}

// getFieldName 获取字段名称
// 优先使用 json tag，否则使用字段名（首字母小写）
func getFieldName(field reflect.StructField) string {
	jsonTag := field.Tag.Get("json")
	if jsonTag == "-" {
		return ""
	}
	if jsonTag != "" {
		if name := strings.Split(jsonTag, ",")[0]; name != "" {
			return name
		}
	}
	return strings.ToLower(field.Name[:1]) + field.Name[1:]
}

// getTypeName 获取 JSON Schema 类型名称
func getTypeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

// JSONSchema 生成事件数组的 JSON Schema
func (s Schema) JSONSchema() map[string]any {
	properties := map[string]any{}
	required := []string{}
	for _, f := range s.Fields() {
		prop := map[string]any{"type": f.Type}
		if f.Pattern != "" {
			prop["pattern"] = f.Pattern
		}
		if f.Type == "string" && f.Required {
			prop["minLength"] = 1
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "array",
		"items": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
