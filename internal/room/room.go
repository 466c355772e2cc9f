// Package room определяет идентификатор комнаты и ссылки-приглашения.
package room

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
)

const (
	// DefaultLength длина генерируемого идентификатора комнаты
	DefaultLength = 6
	// QueryParam имя query-параметра ссылки-приглашения
	QueryParam = "join-id"
	// TopicPrefix префикс топика комнаты на signaling-сервере
	TopicPrefix = "equation-"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ID идентификатор комнаты. Стабилен в течение сессии и ограничивает
// обнаружение участников: сессии с разными ID никогда не обмениваются данными.
type ID string

// String возвращает строковое представление ID.
func (id ID) String() string {
	return string(id)
}

// Topic возвращает топик комнаты на signaling-сервере.
func (id ID) Topic() string {
	return TopicPrefix + string(id)
}

// NewID генерирует случайный ID заданной длины.
// Проверки уникальности нет: коллизии для коротких сессий считаются допустимым риском.
func NewID(length int) ID {
	if length <= 0 {
		length = DefaultLength
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return ID(b.String())
}

// Resolve возвращает joinRef без изменений, если он задан,
// иначе создает новую комнату. Некорректный joinRef не является ошибкой:
// он просто ведет в комнату, где никого нет.
func Resolve(joinRef string) ID {
	if strings.TrimSpace(joinRef) == "" {
		return NewID(DefaultLength)
	}
	return ID(joinRef)
}

// FromURL читает join-id из ссылки-приглашения.
// Если ссылка не разбирается или параметра нет, создается новая комната.
func FromURL(location string) ID {
	u, err := url.Parse(location)
	if err != nil {
		return Resolve("")
	}
	return Resolve(u.Query().Get(QueryParam))
}

// InviteLink строит ссылку-приглашение: location с параметром join-id.
// Остальные параметры и фрагмент сохраняются.
func InviteLink(location string, id ID) (string, error) {
	if id == "" {
		return "", fmt.Errorf("room id cannot be empty")
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("failed to parse location: %w", err)
	}

	query := u.Query()
	query.Set(QueryParam, string(id))
	u.RawQuery = query.Encode()

	return u.String(), nil
}
