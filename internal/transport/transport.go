// Package transport связывает участников комнаты прямыми соединениями и
// доставляет между ними конверты api.Envelope. Транспорт никогда не изменяет
// документ: входящие сообщения передаются Handler.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/mathroom/internal/room"
	"github.com/iudanet/mathroom/pkg/api"
)

var (
	// ErrNotConnected транспорт не подключен к комнате
	ErrNotConnected = errors.New("transport is not connected")
	// ErrAlreadyConnected повторный Connect без Disconnect
	ErrAlreadyConnected = errors.New("transport is already connected")
	// ErrUnknownPeer нет соединения с участником
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrRoomMismatch участник из другой комнаты
	ErrRoomMismatch = errors.New("peer belongs to another room")
)

// State состояние транспорта
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status состояние транспорта и количество открытых соединений.
// В StateConnected количество участников меняется без смены состояния.
type Status struct {
	State State `json:"state"`
	Peers int   `json:"peers"`
}

func (s Status) String() string {
	if s.State == StateConnected {
		return fmt.Sprintf("connected(%d)", s.Peers)
	}
	return s.State.String()
}

// Handler получает события транспорта. Методы вызываются из горутин
// транспорта и не должны блокироваться надолго.
type Handler interface {
	HandleMessage(from string, env api.Envelope)
	HandlePeerUp(peer string)
	HandlePeerDown(peer string)
	HandleStatus(status Status)
}

//go:generate moq -out transport_mock.go . Transport

// Transport сетка прямых соединений внутри комнаты.
type Transport interface {
	// Connect начинает обнаружение участников комнаты. Не ждет соединений:
	// они появляются асинхронно через Handler.HandlePeerUp.
	Connect(ctx context.Context, id room.ID) error
	// Disconnect закрывает все соединения. Безопасен в любой момент.
	Disconnect() error
	// Broadcast отправляет конверт во все открытые соединения (best effort).
	Broadcast(env api.Envelope) error
	// Send отправляет конверт одному участнику.
	Send(peer string, env api.Envelope) error
	SetHandler(h Handler)
	Status() Status
	PeerID() string
}

type noopHandler struct{}

func (noopHandler) HandleMessage(string, api.Envelope) {}
func (noopHandler) HandlePeerUp(string)                {}
func (noopHandler) HandlePeerDown(string)              {}
func (noopHandler) HandleStatus(Status)                {}
