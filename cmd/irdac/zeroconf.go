package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

// advertiseHTTP registers the HTTP API as _http._tcp under the device
// hostname and withdraws it when ctx is canceled.
func advertiseHTTP(ctx context.Context, hostname string, port int, logger *slog.Logger) error {
	txt := []string{"version=" + version, "path=/api/state", "ws=/ws"}
	server, err := zeroconf.Register(hostname, "_http._tcp", "local.", port, txt, nil)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	logger.Info("mDNS service registered", "name", hostname, "port", port)

	<-ctx.Done()
	server.Shutdown()
	logger.Debug("mDNS service withdrawn")
	return nil
}
