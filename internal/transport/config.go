package transport

import "time"

// Config параметры WebSocket-транспорта.
type Config struct {
	// SignalURLs адреса signaling-серверов (ws://host:port/ws), перебираются по кругу
	SignalURLs []string
	// ListenAddr адрес слушателя прямых соединений
	ListenAddr string
	// AdvertiseAddr адрес, который объявляется другим участникам.
	// Пусто - адрес слушателя.
	AdvertiseAddr string
	// PeerID идентификатор участника. Пусто - случайный UUID.
	PeerID string

	SendBuffer       int
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	RetryInitial     time.Duration
	RetryMax         time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       "127.0.0.1:0",
		SendBuffer:       256,
		PingInterval:     20 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		RetryInitial:     500 * time.Millisecond,
		RetryMax:         30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = def.RetryInitial
	}
	if c.RetryMax <= 0 {
		c.RetryMax = def.RetryMax
	}
	return c
}
