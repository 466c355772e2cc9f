package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/iudanet/mathroom/pkg/api"
)

// DiscoverSignaling ищет signaling-серверы в локальной сети через mDNS
// в течение timeout и возвращает их websocket-адреса.
func DiscoverSignaling(ctx context.Context, timeout time.Duration) ([]string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, api.SignalServiceType, api.SignalServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for signaling servers: %w", err)
	}

	var found []*zeroconf.ServiceEntry
	for {
		select {
		case <-ctx.Done():
			return signalURLs(found), nil
		case entry, ok := <-entries:
			if !ok {
				return signalURLs(found), nil
			}
			found = append(found, entry)
		}
	}
}

// signalURLs превращает найденные mDNS-записи в websocket-адреса без повторов.
func signalURLs(entries []*zeroconf.ServiceEntry) []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry == nil || entry.Port == 0 {
			continue
		}

		var host string
		switch {
		case len(entry.AddrIPv4) > 0:
			host = entry.AddrIPv4[0].String()
		case len(entry.AddrIPv6) > 0:
			host = entry.AddrIPv6[0].String()
		default:
			continue
		}

		path := api.SignalPath
		for _, txt := range entry.Text {
			if value, ok := strings.CutPrefix(txt, "path="); ok && strings.HasPrefix(value, "/") {
				path = value
			}
		}

		url := "ws://" + net.JoinHostPort(host, strconv.Itoa(entry.Port)) + path
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}

	return urls
}
