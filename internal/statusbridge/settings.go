package statusbridge

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/cv-review/internal/config"
)

const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 8766
	DefaultTimeout = 5 * time.Second
)

// Settings says whether and where the bridge listens. Port 0 picks a free
// port.
type Settings struct {
	Enabled bool
	Host    string
	Port    int
	// Timeout bounds request reads and response writes; idle keep-alive
	// connections get four times as long.
	Timeout time.Duration
}

// Addr is the listen address.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SettingsFromConfig reads the bridge section of cfg (nil means defaults),
// then CVREVIEW_BRIDGE_ENABLED, CVREVIEW_BRIDGE_HOST and CVREVIEW_BRIDGE_PORT.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{Host: DefaultHost, Port: DefaultPort, Timeout: DefaultTimeout}
	if cfg != nil {
		b := cfg.Project.Bridge
		if b.Enabled != nil {
			s.Enabled = *b.Enabled
		}
		s.setHost(b.Host)
		s.setPort(b.Port)
	}

	if v, ok := os.LookupEnv("CVREVIEW_BRIDGE_ENABLED"); ok {
		if on, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			s.Enabled = on
		}
	}
	s.setHost(os.Getenv("CVREVIEW_BRIDGE_HOST"))
	if v := strings.TrimSpace(os.Getenv("CVREVIEW_BRIDGE_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.setPort(port)
		}
	}
	return s
}

func (s *Settings) setHost(host string) {
	if host = strings.TrimSpace(host); host != "" {
		s.Host = host
	}
}

// setPort ignores anything outside 1..65535.
func (s *Settings) setPort(port int) {
	if port > 0 && port <= 65535 {
		s.Port = port
	}
}

func (s Settings) timeouts() (rw, idle time.Duration) {
	rw = s.Timeout
	if rw <= 0 {
		rw = DefaultTimeout
	}
	return rw, 4 * rw
}
