package api

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/mathroom/internal/models"
)

// Типы сообщений прямого соединения между участниками
const (
	TypeHello     = "hello"      // рукопожатие: peer id и комната
	TypeSyncStep1 = "sync_step1" // вектор версий отправителя
	TypeSyncStep2 = "sync_step2" // ответ на step1: недостающие операции
	TypeUpdate    = "update"     // новые операции документа
	TypePresence  = "presence"   // presence отправителя
	TypeBye       = "bye"        // штатное закрытие соединения
)

// Envelope конверт любого сообщения между участниками
type Envelope struct {
	Type    string          `json:"type"`              // тип сообщения
	From    string          `json:"from"`              // peer id отправителя
	Payload json.RawMessage `json:"payload,omitempty"` // тело, зависит от Type
}

// Hello первое сообщение соединения
type Hello struct {
	PeerID string `json:"peer_id"` // peer id отправителя
	Room   string `json:"room"`    // комната отправителя
}

// SyncStep1 вектор версий: для каждого peer длина непрерывного префикса операций
type SyncStep1 struct {
	Vector map[string]uint64 `json:"vector"`
}

// Deltas операции документа (sync_step2 и update).
// Каждая операция кодируется отдельно, чтобы битая операция не ломала остальные.
type Deltas struct {
	Deltas []json.RawMessage `json:"deltas"`
}

// Presence presence отправителя
type Presence struct {
	Presence models.PeerPresence `json:"presence"`
}

// NewEnvelope кодирует payload в конверт.
func NewEnvelope(typ, from string, payload any) (Envelope, error) {
	env := Envelope{Type: typ, From: from}
	if payload == nil {
		return env, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	env.Payload = data
	return env, nil
}

// Decode разбирает payload конверта в v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("empty %s payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}
