package apiclient

import "context"

// getResource performs a GET request and decodes the response into a T.
//
// Example:
//
//	status, err := getResource[ScanStatus](ctx, c, "/api/v1/scan")
func getResource[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var result T
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// createResource performs a POST request with body and decodes the
// response into a T.
func createResource[T any](ctx context.Context, c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
