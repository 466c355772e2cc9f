package models

// Expression представляет одну редактируемую запись общего списка выражений.
// Внутреннюю семантику полей определяет редактор; ядру синхронизации нужно
// только, чтобы запись была сравнимой (==) и сериализуемой.
type Expression struct {
	ID     string `json:"id"`               // ID уникальный идентификатор выражения (задает редактор)
	Type   string `json:"type,omitempty"`   // Type тип записи: "expression", "text", "folder"
	Text   string `json:"text,omitempty"`   // Text исходный текст выражения (например, "y=x")
	Color  string `json:"color,omitempty"`  // Color цвет графика
	Hidden bool   `json:"hidden,omitempty"` // Hidden флаг скрытого графика
}

// ExpressionType константы для типов выражений
const (
	ExpressionTypeMath   = "expression"
	ExpressionTypeText   = "text"
	ExpressionTypeFolder = "folder"
)

// Equal сравнивает два выражения структурно.
func (e Expression) Equal(other Expression) bool {
	return e == other
}

// Patch описывает частичное изменение полей выражения.
// nil-поле означает "не изменять".
type Patch struct {
	Type   *string `json:"type,omitempty"`
	Text   *string `json:"text,omitempty"`
	Color  *string `json:"color,omitempty"`
	Hidden *bool   `json:"hidden,omitempty"`
}

// IsEmpty возвращает true, если патч ничего не изменяет.
func (p Patch) IsEmpty() bool {
	return p.Type == nil && p.Text == nil && p.Color == nil && p.Hidden == nil
}

// ApplyTo применяет все заданные поля патча к выражению.
// Используется редактором для предпросмотра; слияние реплик идет через crdt.
func (p Patch) ApplyTo(e *Expression) {
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Text != nil {
		e.Text = *p.Text
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Hidden != nil {
		e.Hidden = *p.Hidden
	}
}

// TextPatch создает патч, изменяющий только текст выражения.
func TextPatch(text string) Patch {
	return Patch{Text: &text}
}

// ExpressionsEqual сравнивает два списка выражений поэлементно.
func ExpressionsEqual(a, b []Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
