package config

import (
	"errors"
	"flag"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mathroom/internal/room"
)

func env(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoadSignal_Defaults(t *testing.T) {
	cfg, err := LoadSignal(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Addr)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.True(t, cfg.MDNS)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.ShowVersion)
}

func TestLoadSignal_Priority(t *testing.T) {
	args := []string{"-addr", ":9000", "-redis", "localhost:6379", "-rate-limit", "10", "-log-level", "debug", "-mdns=false"}

	t.Run("flags over defaults", func(t *testing.T) {
		cfg, err := LoadSignal(args, env(nil))
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
		assert.Equal(t, 10, cfg.RateLimit)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
		assert.False(t, cfg.MDNS)
	})

	t.Run("environment over flags", func(t *testing.T) {
		cfg, err := LoadSignal(args, env(map[string]string{
			EnvSignalAddr: ":9100",
			EnvRateLimit:  "5",
			EnvMDNS:       "true",
			EnvLogLevel:   "error",
			EnvRedisAddr:  "  ",
		}))
		require.NoError(t, err)
		assert.Equal(t, ":9100", cfg.Addr)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr, "Blank variable is ignored")
		assert.Equal(t, 5, cfg.RateLimit)
		assert.Equal(t, slog.LevelError, cfg.LogLevel)
		assert.True(t, cfg.MDNS)
	})
}

func TestLoadSignal_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		env    map[string]string
		errMsg string
	}{
		{name: "unknown flag", args: []string{"-nope"}, errMsg: "flag provided but not defined"},
		{name: "bad level flag", args: []string{"-log-level", "loud"}, errMsg: "log-level"},
		{name: "bad rate env", env: map[string]string{EnvRateLimit: "many"}, errMsg: EnvRateLimit},
		{name: "bad bool env", env: map[string]string{EnvMDNS: "sure"}, errMsg: EnvMDNS},
		{name: "zero rate", args: []string{"-rate-limit", "0"}, errMsg: "rate limit must be positive"},
		{name: "empty address", args: []string{"-addr", ""}, errMsg: "listen address cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSignal(tt.args, env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadSignal_Help(t *testing.T) {
	_, err := LoadSignal([]string{"-h"}, env(nil))
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestLoadPeer_Defaults(t *testing.T) {
	cfg, err := LoadPeer(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ws://localhost:8090/ws"}, cfg.SignalURLs)
	assert.False(t, cfg.Discover)
	assert.Equal(t, 3*time.Second, cfg.DiscoverTimeout)
	assert.Equal(t, "127.0.0.1:0", cfg.ListenAddr)
	assert.Empty(t, cfg.Join)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
}

func TestLoadPeer_Priority(t *testing.T) {
	args := []string{
		"-signal", "ws://a:1/ws, ws://b:2/ws,",
		"-join", "abc123",
		"-label", "alice",
		"-discover-timeout", "1s",
	}

	cfg, err := LoadPeer(args, env(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"ws://a:1/ws", "ws://b:2/ws"}, cfg.SignalURLs)
	assert.Equal(t, "abc123", cfg.Join)
	assert.Equal(t, "alice", cfg.Label)
	assert.Equal(t, time.Second, cfg.DiscoverTimeout)

	cfg, err = LoadPeer(args, env(map[string]string{
		EnvSignalURLs:      "ws://c:3/ws",
		EnvLabel:           "bob",
		EnvDiscover:        "1",
		EnvDiscoverTimeout: "500ms",
		EnvAdvertiseAddr:   "10.0.0.5:7000",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"ws://c:3/ws"}, cfg.SignalURLs)
	assert.Equal(t, "bob", cfg.Label)
	assert.True(t, cfg.Discover)
	assert.Equal(t, 500*time.Millisecond, cfg.DiscoverTimeout)
	assert.Equal(t, "10.0.0.5:7000", cfg.AdvertiseAddr)
}

func TestLoadPeer_Errors(t *testing.T) {
	_, err := LoadPeer([]string{"-signal", " , "}, env(nil))
	assert.ErrorContains(t, err, "no signaling servers")

	cfg, err := LoadPeer([]string{"-signal", "", "-discover"}, env(nil))
	require.NoError(t, err, "Discovery alone is enough")
	assert.Empty(t, cfg.SignalURLs)

	_, err = LoadPeer(nil, env(map[string]string{EnvDiscoverTimeout: "soon"}))
	assert.ErrorContains(t, err, EnvDiscoverTimeout)

	_, err = LoadPeer([]string{"-discover-timeout", "0s"}, env(nil))
	assert.ErrorContains(t, err, "discover timeout must be positive")
}

func TestPeer_Room(t *testing.T) {
	tests := []struct {
		name string
		join string
		want room.ID
	}{
		{name: "plain id", join: "abc123", want: "abc123"},
		{name: "invite link", join: "https://example.com/calc?join-id=xyz789", want: "xyz789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Peer{Join: tt.join}.Room())
		})
	}

	generated := Peer{}.Room()
	assert.Len(t, generated.String(), room.DefaultLength)
	assert.NotEqual(t, generated, Peer{Join: "   "}.Room())
}
