package commerce

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "shopexport/pkg/errors"
	"shopexport/pkg/logger"
	"shopexport/pkg/ratelimit"
)

// Client is a rate-limited client for the commerce REST API. Every request
// passes through the limiter's FIFO admission before it is issued, so at
// most the configured number of operations run per rolling second across
// the whole process. The client performs no retries; retry policy belongs
// to the calling stage.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a new commerce API client authenticated with the given
// bearer token.
func NewClient(baseURL, token string, timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Accept":        "application/json",
			"Content-Type":  "application/json",
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: limiter,
		logger:  log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with the configured headers, waiting
// for rate limit admission first.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	if c.limiter != nil {
		c.limiter.Wait()
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Newf(errs.KindTransient, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(url string, target interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errs.Newf(errs.KindUnknown, "failed to create request: %v", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Kind:    errs.KindTransient,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Kind:    errs.KindDataShape,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// checkResponseStatus maps the HTTP response status onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	kind := errs.KindForStatusCode(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	switch kind {
	case errs.KindAuth:
		c.logger.WarnWithFields("authentication rejected", fields)
		return errs.FromStatusCode(resp.StatusCode, "authentication rejected; check the API token")
	case errs.KindNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return errs.FromStatusCode(resp.StatusCode, "resource not found")
	case errs.KindTransient:
		c.logger.WarnWithFields("transient API error", fields)
		return errs.FromStatusCode(resp.StatusCode, "transient API error")
	default:
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", fields)
			return errs.FromStatusCode(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
		}
		return nil
	}
}

// SearchOrders fetches one page of the order collection, sorted by
// entity_id descending. TotalCount in the response is the collection size
// under the current filter.
func (c *Client) SearchOrders(page, pageSize int, createdAfter string) (*SearchResponse[Order], error) {
	url := OrderSearchURL(c.baseURL, page, pageSize, createdAfter)

	c.logger.DebugWithFields("fetching order page", map[string]interface{}{
		"page":      page,
		"page_size": pageSize,
	})

	var response SearchResponse[Order]
	if err := c.GetJSON(url, &response); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("order page fetched", map[string]interface{}{
		"page":        page,
		"items":       len(response.Items),
		"total_count": response.TotalCount,
	})

	return &response, nil
}

// GetTransactions fetches the payment transactions of one order
func (c *Client) GetTransactions(orderID int64) ([]Transaction, error) {
	url := TransactionSearchURL(c.baseURL, orderID)

	var response SearchResponse[Transaction]
	if err := c.GetJSON(url, &response); err != nil {
		return nil, err
	}

	return response.Items, nil
}

// GetShipments fetches the shipments of one order
func (c *Client) GetShipments(orderID int64) ([]Shipment, error) {
	url := ShipmentSearchURL(c.baseURL, orderID)

	var response SearchResponse[Shipment]
	if err := c.GetJSON(url, &response); err != nil {
		return nil, err
	}

	return response.Items, nil
}
