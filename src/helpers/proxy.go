package helpers

import (
	"net/url"
	"parking-viewer/src/logger"
	"strings"
	"sync"
)

const defaultUserAgent = "parking-viewer/1.0"

// -----------------------------------------------------------------------------

// ProxyManager rotates through the HTTP proxies configured for reaching the
// simulation backend.
type ProxyManager struct {
	proxies   []string
	userAgent string
	index     int
	mu        sync.Mutex
	logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewProxyManager(proxies []string, userAgent string, log *logger.Logger) *ProxyManager {
	// Validate and format proxies on init
	var validProxies []string
	for _, p := range proxies {
		if ValidateProxy(p) {
			validProxies = append(validProxies, FormatProxy(p))
		} else {
			log.Warning("Ignoring invalid proxy '%s'", p)
		}
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &ProxyManager{
		proxies:   validProxies,
		userAgent: userAgent,
		logger:    log,
	}
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) GetCurrentProxy() (string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) == 0 {
		return "", nil
	}
	return pm.proxies[pm.index], nil
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) RotateProxy() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) <= 1 {
		return
	}

	pm.index = (pm.index + 1) % len(pm.proxies)
	pm.logger.Info("Rotating proxy to: %s", pm.proxies[pm.index])
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) GetUserAgent() string {
	return pm.userAgent
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) HasProxies() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.proxies) > 0
}

// -----------------------------------------------------------------------------

// ValidateProxy checks if a proxy string is roughly valid.
func ValidateProxy(proxyStr string) bool {
	if strings.TrimSpace(proxyStr) == "" {
		return false
	}
	u, err := url.Parse(FormatProxy(proxyStr))
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "socks5")
}

// -----------------------------------------------------------------------------

// FormatProxy ensures the proxy has a scheme.
func FormatProxy(proxyStr string) string {
	if !strings.Contains(proxyStr, "://") {
		return "http://" + proxyStr
	}
	return proxyStr
}
