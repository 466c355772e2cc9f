package signal

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"

	"github.com/iudanet/mathroom/pkg/api"
)

// Advertise объявляет signaling-сервер в локальной сети через mDNS.
// Возвращает функцию остановки объявления.
func Advertise(port int, version string) (func(), error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	server, err := zeroconf.Register(
		fmt.Sprintf("mathroom-%s", host),
		api.SignalServiceType,
		api.SignalServiceDomain,
		port,
		[]string{"path=" + api.SignalPath, "version=" + version},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	return server.Shutdown, nil
}
