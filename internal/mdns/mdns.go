// Package mdns announces the HTTP service over DNS-SD so clients on the
// local network can find the buzzer without knowing its address.
package mdns

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"

	"github.com/grandcat/zeroconf"
)

type Config struct {
	Instance string
	Service  string // e.g. "_buzzer._tcp"
	Domain   string // e.g. "local."
	Port     int
	Text     map[string]string
}

type server interface {
	Shutdown()
}

var register = func(instance, service, domain string, port int, text []string) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, nil)
}

// Advertise registers the service and blocks until ctx is done, then
// withdraws the announcement. It returns nil on cancellation.
func Advertise(ctx context.Context, cfg Config, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("mdns: invalid port %d", cfg.Port)
	}

	srv, err := register(cfg.Instance, cfg.Service, cfg.Domain, cfg.Port, txtRecords(cfg.Text))
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	log.Info("mdns advertising", "instance", cfg.Instance, "service", cfg.Service, "port", cfg.Port)

	<-ctx.Done()
	srv.Shutdown()
	log.Debug("mdns announcement withdrawn")
	return nil
}

// PortFromListen extracts the numeric port of an http listen address
// like ":8080" or "0.0.0.0:80".
func PortFromListen(listen string) (int, error) {
	_, p, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("listen port %q: %w", p, err)
	}
	return port, nil
}

func txtRecords(m map[string]string) []string {
	txt := make([]string, 0, len(m))
	for k, v := range m {
		txt = append(txt, k+"="+v)
	}
	sort.Strings(txt)
	return txt
}
