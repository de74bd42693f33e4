package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"parking-viewer/src/helpers"
	"parking-viewer/src/interfaces"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"
	"sync"
	"time"
)

// maxBodyBytes bounds a single response body
const maxBodyBytes = 8 << 20

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger
	client       *http.Client
	mu           sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent, log.Named("ProxyManager")),
		Logger:       log,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	nm.mu.Lock()
	nm.client = nm.createClient()
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) currentClient() *http.Client {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.client
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	return nm.do(ctx, http.MethodGet, urlStr, params, nm.Config.Network.MaxRetries)
}

// -----------------------------------------------------------------------------

// GetOnce performs a GET request without retries.
func (nm *AsyncNetworkManager) GetOnce(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	return nm.do(ctx, http.MethodGet, urlStr, params, 0)
}

// -----------------------------------------------------------------------------

// Post performs a body-less POST request with retries and proxy rotation.
func (nm *AsyncNetworkManager) Post(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	return nm.do(ctx, http.MethodPost, urlStr, params, nm.Config.Network.MaxRetries)
}

// -----------------------------------------------------------------------------

// do returns a *helpers.TransportError for every failure.
func (nm *AsyncNetworkManager) do(ctx context.Context, method, urlStr string, params map[string]string, maxRetries int) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewTransportError("invalid url", 0, err)
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	var lastErr *helpers.TransportError

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Exponential backoff, interruptible
			select {
			case <-time.After(time.Duration(i*i) * 100 * time.Millisecond):
			case <-ctx.Done():
				return nil, helpers.NewTransportError(method+" "+reqUrl.Path+" cancelled", 0, ctx.Err())
			}
			nm.rotateProxy()
		}

		body, status, err := nm.once(ctx, method, finalUrl)
		if err == nil {
			return body, nil
		}

		lastErr = helpers.NewTransportError(fmt.Sprintf("%s %s", method, reqUrl.Path), status, err)
		nm.Logger.Debug("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) once(ctx context.Context, method, finalUrl string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, finalUrl, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := nm.currentClient().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, resp.StatusCode, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}
