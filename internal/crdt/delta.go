package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iudanet/mathroom/internal/models"
)

// ID уникальный идентификатор операции: реплика + порядковый номер операции
// в этой реплике (1, 2, 3, ... без пропусков).
// Для вставки ID операции одновременно является идентификатором элемента списка.
type ID struct {
	Peer string `json:"peer"`
	Seq  uint64 `json:"seq"`
}

// IsZero возвращает true для нулевого ID (начало списка).
func (id ID) IsZero() bool {
	return id.Peer == "" && id.Seq == 0
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%d", id.Peer, id.Seq)
}

// Kind тип операции
type Kind string

// Kind константы для типов операций
const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Delta представляет одно инкрементальное изменение списка выражений.
// Delta неизменяема после создания и безопасна для повторной доставки:
// повторное применение той же Delta ничего не меняет.
type Delta struct {
	Expression *models.Expression `json:"expression,omitempty"` // Expression вставляемое выражение (insert)
	Patch      *models.Patch      `json:"patch,omitempty"`      // Patch изменяемые поля (update)
	Kind       Kind               `json:"kind"`                 // Kind тип операции
	ID         ID                 `json:"id"`                   // ID идентификатор операции
	Origin     ID                 `json:"origin"`               // Origin левый сосед на момент вставки (нулевой = начало списка)
	Target     ID                 `json:"target"`               // Target элемент, к которому относится update/delete
	Clock      int64              `json:"clock"`                // Clock Lamport timestamp операции
}

// Stamp возвращает LWW-метку операции.
func (d Delta) Stamp() Stamp {
	return Stamp{Clock: d.Clock, Peer: d.ID.Peer}
}

// Dependency возвращает ID элемента, который должен быть интегрирован
// до этой операции, и false, если зависимости нет.
func (d Delta) Dependency() (ID, bool) {
	switch d.Kind {
	case KindInsert:
		return d.Origin, !d.Origin.IsZero()
	case KindUpdate, KindDelete:
		return d.Target, true
	default:
		return ID{}, false
	}
}

// Validate проверяет структурную корректность Delta.
func (d Delta) Validate() error {
	if d.ID.Peer == "" || d.ID.Seq == 0 {
		return fmt.Errorf("%w: missing operation id", ErrMalformedDelta)
	}
	if d.Clock <= 0 {
		return fmt.Errorf("%w: non-positive clock %d", ErrMalformedDelta, d.Clock)
	}

	switch d.Kind {
	case KindInsert:
		if d.Expression == nil || d.Expression.ID == "" {
			return fmt.Errorf("%w: insert %s without expression", ErrMalformedDelta, d.ID)
		}
		if d.Origin == d.ID {
			return fmt.Errorf("%w: insert %s references itself", ErrMalformedDelta, d.ID)
		}
	case KindUpdate:
		if d.Target.IsZero() {
			return fmt.Errorf("%w: update %s without target", ErrMalformedDelta, d.ID)
		}
		if d.Patch == nil || d.Patch.IsEmpty() {
			return fmt.Errorf("%w: update %s without patch", ErrMalformedDelta, d.ID)
		}
	case KindDelete:
		if d.Target.IsZero() {
			return fmt.Errorf("%w: delete %s without target", ErrMalformedDelta, d.ID)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedDelta, d.Kind)
	}

	return nil
}

// EncodeDelta сериализует Delta в JSON.
func EncodeDelta(d Delta) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delta: %w", err)
	}
	return data, nil
}

// DecodeDelta разбирает и проверяет Delta (строго, неизвестные поля отклоняются).
// Любая ошибка оборачивает ErrMalformedDelta.
func DecodeDelta(data []byte) (Delta, error) {
	var d Delta

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Delta{}, fmt.Errorf("%w: %v", ErrMalformedDelta, err)
	}

	if err := d.Validate(); err != nil {
		return Delta{}, err
	}

	return d, nil
}
