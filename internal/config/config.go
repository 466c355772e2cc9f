// Package config разбирает параметры запуска бинарников.
//
// Приоритет источников (от высшего к низшему):
//  1. переменные окружения MATHROOM_*
//  2. флаги командной строки
//  3. значения по умолчанию
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/mathroom/internal/room"
)

// DefaultRateLimit лимит новых websocket-соединений в минуту с одного IP
const DefaultRateLimit = 60

// Переменные окружения
const (
	EnvSignalAddr      = "MATHROOM_SIGNAL_ADDR"
	EnvRedisAddr       = "MATHROOM_REDIS_ADDR"
	EnvRateLimit       = "MATHROOM_RATE_LIMIT"
	EnvMDNS            = "MATHROOM_MDNS"
	EnvLogLevel        = "MATHROOM_LOG_LEVEL"
	EnvSignalURLs      = "MATHROOM_SIGNAL_URLS"
	EnvDiscover        = "MATHROOM_DISCOVER"
	EnvDiscoverTimeout = "MATHROOM_DISCOVER_TIMEOUT"
	EnvJoin            = "MATHROOM_JOIN"
	EnvLabel           = "MATHROOM_LABEL"
	EnvListenAddr      = "MATHROOM_LISTEN_ADDR"
	EnvAdvertiseAddr   = "MATHROOM_ADVERTISE_ADDR"
	EnvInviteBase      = "MATHROOM_INVITE_BASE"
)

// Signal параметры signaling-сервера
type Signal struct {
	Addr        string     // адрес HTTP-сервера
	RedisAddr   string     // адрес redis для шины между экземплярами; пусто - шина в памяти
	RateLimit   int        // лимит новых websocket-соединений в минуту с одного IP
	LogLevel    slog.Level // уровень логирования
	MDNS        bool       // объявлять сервер в локальной сети через mDNS
	ShowVersion bool
}

// Peer параметры консольного участника
type Peer struct {
	Join            string        // id комнаты или ссылка-приглашение; пусто - новая комната
	Label           string        // отображаемое имя
	ListenAddr      string        // адрес слушателя прямых соединений
	AdvertiseAddr   string        // адрес, объявляемый соседям
	InviteBase      string        // адрес страницы для ссылок-приглашений
	SignalURLs      []string      // адреса signaling-серверов
	DiscoverTimeout time.Duration // время поиска signaling через mDNS
	LogLevel        slog.Level
	Discover        bool // искать signaling-серверы через mDNS
	ShowVersion     bool
}

// Room возвращает комнату из Join: ссылка-приглашение разбирается,
// пустое значение дает новую комнату.
func (p Peer) Room() room.ID {
	if strings.Contains(p.Join, "://") {
		return room.FromURL(p.Join)
	}
	return room.Resolve(p.Join)
}

// LoadSignal разбирает args (без имени программы) и окружение getenv.
func LoadSignal(args []string, getenv func(string) string) (Signal, error) {
	var cfg Signal

	fs := flag.NewFlagSet("mathroom-signal", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Addr, "addr", ":8090", "HTTP listen address")
	fs.StringVar(&cfg.RedisAddr, "redis", "", "Redis address for multi-instance fan-out (empty: in-memory)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", DefaultRateLimit, "New websocket connections per minute per IP")
	fs.BoolVar(&cfg.MDNS, "mdns", true, "Advertise the server on the local network via mDNS")
	fs.TextVar(&cfg.LogLevel, "log-level", slog.LevelInfo, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return Signal{}, err
	}

	env := envReader{getenv: getenv}
	env.string(EnvSignalAddr, &cfg.Addr)
	env.string(EnvRedisAddr, &cfg.RedisAddr)
	env.int(EnvRateLimit, &cfg.RateLimit)
	env.bool(EnvMDNS, &cfg.MDNS)
	env.level(EnvLogLevel, &cfg.LogLevel)
	if env.err != nil {
		return Signal{}, env.err
	}

	if cfg.Addr == "" {
		return Signal{}, fmt.Errorf("listen address cannot be empty")
	}
	if cfg.RateLimit <= 0 {
		return Signal{}, fmt.Errorf("rate limit must be positive, got %d", cfg.RateLimit)
	}
	return cfg, nil
}

// LoadPeer разбирает args (без имени программы) и окружение getenv.
func LoadPeer(args []string, getenv func(string) string) (Peer, error) {
	var cfg Peer
	var signalURLs string

	fs := flag.NewFlagSet("mathroom-peer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&signalURLs, "signal", "ws://localhost:8090/ws", "Comma-separated signaling server URLs")
	fs.BoolVar(&cfg.Discover, "discover", false, "Find signaling servers on the local network via mDNS")
	fs.DurationVar(&cfg.DiscoverTimeout, "discover-timeout", 3*time.Second, "mDNS discovery time")
	fs.StringVar(&cfg.Join, "join", "", "Room id or invite link (empty: new room)")
	fs.StringVar(&cfg.Label, "label", "", "Display name (empty: random user id)")
	fs.StringVar(&cfg.ListenAddr, "listen", "127.0.0.1:0", "Listen address for direct peer links")
	fs.StringVar(&cfg.AdvertiseAddr, "advertise", "", "Address announced to other peers (empty: listen address)")
	fs.StringVar(&cfg.InviteBase, "invite-base", "http://localhost:8090/", "Page location used to build invite links")
	fs.TextVar(&cfg.LogLevel, "log-level", slog.LevelWarn, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return Peer{}, err
	}

	env := envReader{getenv: getenv}
	env.string(EnvSignalURLs, &signalURLs)
	env.bool(EnvDiscover, &cfg.Discover)
	env.duration(EnvDiscoverTimeout, &cfg.DiscoverTimeout)
	env.string(EnvJoin, &cfg.Join)
	env.string(EnvLabel, &cfg.Label)
	env.string(EnvListenAddr, &cfg.ListenAddr)
	env.string(EnvAdvertiseAddr, &cfg.AdvertiseAddr)
	env.string(EnvInviteBase, &cfg.InviteBase)
	env.level(EnvLogLevel, &cfg.LogLevel)
	if env.err != nil {
		return Peer{}, env.err
	}

	cfg.SignalURLs = splitList(signalURLs)
	if len(cfg.SignalURLs) == 0 && !cfg.Discover {
		return Peer{}, fmt.Errorf("no signaling servers: set -signal or -discover")
	}
	if cfg.DiscoverTimeout <= 0 {
		return Peer{}, fmt.Errorf("discover timeout must be positive, got %s", cfg.DiscoverTimeout)
	}
	return cfg, nil
}

// envReader переопределяет значения непустыми переменными окружения.
// Первая ошибка разбора сохраняется в err.
type envReader struct {
	err    error
	getenv func(string) string
}

func (r *envReader) lookup(key string) (string, bool) {
	if r.getenv == nil || r.err != nil {
		return "", false
	}
	value := strings.TrimSpace(r.getenv(key))
	return value, value != ""
}

func (r *envReader) fail(key, value string, err error) {
	r.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
}

func (r *envReader) string(key string, dst *string) {
	if value, ok := r.lookup(key); ok {
		*dst = value
	}
}

func (r *envReader) int(key string, dst *int) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = n
}

func (r *envReader) bool(key string, dst *bool) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = b
}

func (r *envReader) duration(key string, dst *time.Duration) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = d
}

func (r *envReader) level(key string, dst *slog.Level) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	if err := dst.UnmarshalText([]byte(value)); err != nil {
		r.fail(key, value, err)
	}
}

func splitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
