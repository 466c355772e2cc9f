package api

// mDNS-сервис signaling-сервера в локальной сети
const (
	SignalServiceType   = "_mathroom-signal._tcp"
	SignalServiceDomain = "local."
	SignalPath          = "/ws"
)

// Типы сообщений signaling-сервера (протокол в духе y-webrtc)
const (
	SignalSubscribe   = "subscribe"
	SignalUnsubscribe = "unsubscribe"
	SignalPublish     = "publish"
	SignalPing        = "ping"
	SignalPong        = "pong"
)

// SignalMessage сообщение между участником и signaling-сервером.
// Сервер пересылает publish всем подписчикам топика, включая отправителя.
type SignalMessage struct {
	Type   string        `json:"type"`
	Topic  string        `json:"topic,omitempty"`  // топик publish
	Data   *Announcement `json:"data,omitempty"`   // тело publish
	Topics []string      `json:"topics,omitempty"` // топики subscribe/unsubscribe
}

// Announcement объявление участника в топике комнаты
type Announcement struct {
	PeerID string `json:"peer_id"` // peer id объявляющего
	Addr   string `json:"addr"`    // адрес его слушателя прямых соединений (host:port)
	Room   string `json:"room"`    // комната
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
