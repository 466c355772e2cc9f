package signal

import "errors"

var (
	// ErrBusClosed возвращается при публикации в закрытую шину
	ErrBusClosed = errors.New("signal bus is closed")
	// ErrUnknownMessage неизвестный тип сообщения от клиента
	ErrUnknownMessage = errors.New("unknown signal message type")
)
