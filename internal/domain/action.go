package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/idgen"
)

// Engine источник действия
type Engine string

const (
	EngineTrading  Engine = "trading"
	EngineContent  Engine = "content"
	EngineBuild    Engine = "build"
	EngineWorkflow Engine = "workflow"
	EngineOther    Engine = "other"
)

// Category категория действия
type Category string

const (
	CategoryTrading       Category = "trading"
	CategoryContent       Category = "content"
	CategoryBuild         Category = "build"
	CategoryDeployment    Category = "deployment"
	CategoryConfiguration Category = "configuration"
	CategoryOther         Category = "other"
)

// Urgency срочность действия
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid проверяет известен ли движок
func (e Engine) Valid() bool {
	switch e {
	case EngineTrading, EngineContent, EngineBuild, EngineWorkflow, EngineOther:
		return true
	}
	return false
}

// Valid проверяет известна ли категория
func (c Category) Valid() bool {
	switch c {
	case CategoryTrading, CategoryContent, CategoryBuild, CategoryDeployment, CategoryConfiguration, CategoryOther:
		return true
	}
	return false
}

// Valid проверяет известна ли срочность
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Metadata сигналы риска, которые заполняет адаптер
type Metadata struct {
	EstimatedValue    float64 `json:"estimated_value,omitempty"`
	Reversible        bool    `json:"reversible"`
	Urgency           Urgency `json:"urgency"`
	LinesChanged      int     `json:"lines_changed,omitempty"`
	FilesChanged      int     `json:"files_changed,omitempty"`
	AffectsProduction bool    `json:"affects_production,omitempty"`
}

// Action кандидат на выполнение от доменного движка.
// Передается по значению и не изменяется после создания.
type Action struct {
	ID          string                 `json:"id"`
	Engine      Engine                 `json:"engine"`
	Category    Category               `json:"category"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Metadata    Metadata               `json:"metadata"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Param возвращает параметр действия
func (a Action) Param(key string) (interface{}, bool) {
	v, ok := a.Params[key]
	return v, ok
}

// ParamString возвращает строковый параметр или пустую строку
func (a Action) ParamString(key string) string {
	if v, ok := a.Params[key].(string); ok {
		return v
	}
	return ""
}

// ParamFloat возвращает числовой параметр или значение по умолчанию
func (a Action) ParamFloat(key string, defaultVal float64) float64 {
	switch v := a.Params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultVal
}

// ParamBool возвращает булев параметр или значение по умолчанию
func (a Action) ParamBool(key string, defaultVal bool) bool {
	if b, ok := a.Params[key].(bool); ok {
		return b
	}
	return defaultVal
}

// CopyParams возвращает копию параметров
func (a Action) CopyParams() map[string]interface{} {
	return copyParams(a.Params)
}

// Validate проверяет обязательные поля
func (a Action) Validate() error {
	var problems []string
	if strings.TrimSpace(a.ID) == "" {
		problems = append(problems, "id is empty")
	}
	if !a.Engine.Valid() {
		problems = append(problems, fmt.Sprintf("unknown engine %q", a.Engine))
	}
	if !a.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", a.Category))
	}
	if strings.TrimSpace(a.Type) == "" {
		problems = append(problems, "type is empty")
	}
	if strings.TrimSpace(a.Description) == "" {
		problems = append(problems, "description is empty")
	}
	if !a.Metadata.Urgency.Valid() {
		problems = append(problems, fmt.Sprintf("unknown urgency %q", a.Metadata.Urgency))
	}
	if a.Metadata.EstimatedValue < 0 {
		problems = append(problems, "estimated value is negative")
	}
	if a.Metadata.LinesChanged < 0 || a.Metadata.FilesChanged < 0 {
		problems = append(problems, "change size is negative")
	}
	if a.Timestamp.IsZero() {
		problems = append(problems, "timestamp is zero")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAction, strings.Join(problems, "; "))
	}
	return nil
}

// ActionFactory создает действия с уникальными id и временем создания
type ActionFactory struct {
	ids   idgen.Generator
	clock clock.Clock
}

// NewActionFactory создает фабрику; nil аргументы заменяются на uuid и системные часы
func NewActionFactory(ids idgen.Generator, clk clock.Clock) *ActionFactory {
	return &ActionFactory{
		ids:   idgen.OrDefault(ids),
		clock: clock.OrReal(clk),
	}
}

// New начинает построение действия
func (f *ActionFactory) New(engine Engine, category Category, actionType string) *ActionBuilder {
	return &ActionBuilder{
		factory: f,
		action: Action{
			Engine:   engine,
			Category: category,
			Type:     actionType,
			Params:   make(map[string]interface{}),
			Metadata: Metadata{Urgency: UrgencyNormal},
		},
	}
}

// ActionBuilder пошаговый конструктор Action
type ActionBuilder struct {
	factory *ActionFactory
	action  Action
}

func (b *ActionBuilder) Description(d string) *ActionBuilder {
	b.action.Description = d
	return b
}

func (b *ActionBuilder) Param(key string, value interface{}) *ActionBuilder {
	b.action.Params[key] = value
	return b
}

func (b *ActionBuilder) Params(params map[string]interface{}) *ActionBuilder {
	for k, v := range params {
		b.action.Params[k] = v
	}
	return b
}

func (b *ActionBuilder) Value(v float64) *ActionBuilder {
	b.action.Metadata.EstimatedValue = v
	return b
}

func (b *ActionBuilder) Reversible(r bool) *ActionBuilder {
	b.action.Metadata.Reversible = r
	return b
}

func (b *ActionBuilder) Urgency(u Urgency) *ActionBuilder {
	b.action.Metadata.Urgency = u
	return b
}

func (b *ActionBuilder) Changes(lines, files int) *ActionBuilder {
	b.action.Metadata.LinesChanged = lines
	b.action.Metadata.FilesChanged = files
	return b
}

func (b *ActionBuilder) AffectsProduction(p bool) *ActionBuilder {
	b.action.Metadata.AffectsProduction = p
	return b
}

// Build присваивает id и время и валидирует действие
func (b *ActionBuilder) Build() (Action, error) {
	a := b.action
	a.ID = b.factory.ids.NewID()
	a.Timestamp = b.factory.clock.Now()
	a.Params = copyParams(b.action.Params)

	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

func copyParams(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
