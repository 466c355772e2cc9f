package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/mathroom/pkg/api"
)

// link прямое соединение с одним участником.
// Писать в conn может только writePump.
type link struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	peer      string
	closeOnce sync.Once
}

func newLink(peer string, conn *websocket.Conn, buffer int) *link {
	return &link{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
		peer: peer,
	}
}

// enqueue ставит сообщение в очередь отправки. false - буфер переполнен.
func (l *link) enqueue(data []byte) bool {
	select {
	case <-l.done:
		return true
	default:
	}

	select {
	case l.send <- data:
		return true
	default:
		return false
	}
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

func (l *link) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = l.conn.Close()
	}()

	for {
		select {
		case <-l.done:
			l.sayBye()
			return
		case data := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				l.close()
				return
			}
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				l.close()
				return
			}
		}
	}
}

// sayBye сообщает соседу о штатном закрытии (best effort).
func (l *link) sayBye() {
	data, err := json.Marshal(api.Envelope{Type: api.TypeBye})
	if err != nil {
		return
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	_ = l.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
