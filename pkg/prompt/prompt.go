// Package prompt 提供系统指令的生成和管理功能
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/prompt/templates"
	"github.com/KodaTao/DayPlanner/pkg/schedule"
)

// DefaultYear 系统指令中默认的年份
const DefaultYear = 2024

// Config 系统指令配置
type Config struct {
	// Schema 事件结构：datetime, dayslot
	Schema string `mapstructure:"schema"`

	// Year 告诉模型的当前年份
	Year int `mapstructure:"year"`

	// TemplateFile 自定义模板文件，为空时使用内置模板
	TemplateFile string `mapstructure:"template_file"`
}

// TemplateData 模板数据
type TemplateData struct {
	Year    int
	Schema  schedule.Schema
	Fields  []schedule.FieldInfo
	Example string
}

// Generator 系统指令生成器
// 指令在创建时渲染一次，之后每个请求复用
type Generator struct {
	schema      schedule.Schema
	instruction string
}

// NewGenerator 创建系统指令生成器
func NewGenerator(cfg Config) (*Generator, error) {
	schema, err := schedule.ParseSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	if cfg.Year == 0 {
		cfg.Year = DefaultYear
	}

	tmplStr := builtinTemplate(schema)
	if cfg.TemplateFile != "" {
		data, err := os.ReadFile(cfg.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template: %w", err)
		}
		tmplStr = string(data)
	}

	tmpl, err := template.New("system").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	data := TemplateData{
		Year:    cfg.Year,
		Schema:  schema,
		Fields:  schema.Fields(),
		Example: schema.Example(),
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render prompt template: %w", err)
	}

	return &Generator{
		schema:      schema,
		instruction: buf.String(),
	}, nil
}

func builtinTemplate(schema schedule.Schema) string {
	if schema == schedule.SchemaDaySlot {
		return templates.DaySlotPrompt
	}
	return templates.DateTimePrompt
}

// Schema 返回事件结构
func (g *Generator) Schema() schedule.Schema {
	return g.schema
}

// SystemInstruction 返回渲染后的系统指令
func (g *Generator) SystemInstruction() string {
	return g.instruction
}

// Conversation 构建发送给上游的两条消息：系统指令 + 原样的用户输入
func (g *Generator) Conversation(userPrompt string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: g.instruction},
		{Role: llm.RoleUser, Content: userPrompt},
	}
}
