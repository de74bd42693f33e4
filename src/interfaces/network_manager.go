package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with potential proxy/retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with parameters.
	// Returns the response body as bytes or an error.
	Get(ctx context.Context, url string, params map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// GetOnce performs a single GET attempt, for requests that are not idempotent.
	GetOnce(ctx context.Context, url string, params map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Post performs a body-less POST request with query parameters.
	Post(ctx context.Context, url string, params map[string]string) ([]byte, error)
}
