package gateways

import (
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// HTTP header names used by upstream APIs.
const (
	HeaderContentType = "Content-Type"
	HeaderAPIKey      = "x-api-key"
)

type RestClientOptions struct {
	// Name tags log lines for this upstream.
	Name    string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// NewRestClient returns a resty client preconfigured for a JSON upstream.
// Empty header values are skipped.
func NewRestClient(opts RestClientOptions) *resty.Client {
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader(HeaderContentType, "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	for k, v := range opts.Headers {
		if v != "" {
			client.SetHeader(k, v)
		}
	}
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.WithFields(log.Fields{
			"upstream": opts.Name,
			"method":   resp.Request.Method,
			"url":      resp.Request.URL,
			"status":   resp.StatusCode(),
			"duration": resp.Time(),
		}).Debug("upstream request")
		return nil
	})
	return client
}
