package models

// PeerPresence представляет эфемерные метаданные участника комнаты
// (цвет, подпись). Не является частью документа и не сохраняется.
// Каждую запись пишет только сам участник, поэтому конфликтов нет:
// побеждает запись с большим Seq.
type PeerPresence struct {
	PeerID string `json:"peer_id"`         // PeerID идентификатор соединения участника
	UserID string `json:"user_id"`         // UserID короткий идентификатор пользователя (8 символов)
	Label  string `json:"label"`           // Label отображаемое имя
	Color  string `json:"color"`           // Color основной цвет курсора
	Light  string `json:"light,omitempty"` // Light светлый оттенок для подсветки
	Seq    uint64 `json:"seq"`             // Seq монотонный номер версии, задается владельцем
}

// IsNewerThan возвращает true, если p новее other.
func (p PeerPresence) IsNewerThan(other PeerPresence) bool {
	return p.Seq > other.Seq
}
