// Package jupiter is the aggregator venue: a rate limited client for the
// Jupiter v6 swap API and the svm.Venue built on it.
package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"finco/settlement/errors"
	"finco/settlement/gateways"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const venueName = "aggregator"

const (
	quotePath            = "/quote"
	swapInstructionsPath = "/swap-instructions"
)

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		http: gateways.NewRestClient(gateways.RestClientOptions{
			Name:    venueName,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Headers: map[string]string{gateways.HeaderAPIKey: cfg.APIKey},
		}),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Quote asks for the best route selling amount of inputMint.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint16) (*QuoteResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.VenueServiceError(venueName, 0, err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   inputMint,
			"outputMint":  outputMint,
			"amount":      strconv.FormatUint(amount, 10),
			"slippageBps": strconv.FormatUint(uint64(slippageBps), 10),
			"swapMode":    "ExactIn",
		}).
		Get(quotePath)
	if err != nil {
		return nil, errors.VenueServiceError(venueName, 0, err)
	}
	if resp.IsError() {
		return nil, classify(resp, inputMint, outputMint)
	}

	quote := &QuoteResponse{}
	if err := json.Unmarshal(resp.Body(), quote); err != nil {
		return nil, errors.VenueServiceError(venueName, resp.StatusCode(), errors.BuildErrMsg(errors.UnmarshallError, err))
	}
	quote.raw = append(json.RawMessage(nil), resp.Body()...)
	return quote, nil
}

// SwapInstructions returns the instructions executing quote for user.
func (c *Client) SwapInstructions(ctx context.Context, quote *QuoteResponse, user string) (*SwapInstructionsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.VenueServiceError(venueName, 0, err)
	}
	raw := quote.raw
	if raw == nil {
		encoded, err := json.Marshal(quote)
		if err != nil {
			return nil, errors.Internal(errors.MarshallError, err)
		}
		raw = encoded
	}
	result := &SwapInstructionsResponse{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(SwapInstructionsRequest{
			QuoteResponse: raw,
			UserPublicKey: user,
		}).
		SetResult(result).
		Post(swapInstructionsPath)
	if err != nil {
		return nil, errors.VenueServiceError(venueName, 0, err)
	}
	if resp.IsError() {
		return nil, classify(resp, quote.InputMint, quote.OutputMint)
	}
	return result, nil
}

func classify(resp *resty.Response, inputMint, outputMint string) error {
	status := resp.StatusCode()
	body := ErrorResponse{}
	_ = json.Unmarshal(resp.Body(), &body)
	log.WithFields(log.Fields{
		"status":    status,
		"errorCode": body.ErrorCode,
		"error":     body.Error,
	}).Warn("aggregator request failed")

	if status == http.StatusBadRequest || status == http.StatusNotFound {
		switch body.ErrorCode {
		case ErrorCodeNoRoute, ErrorCodeNoRoutes, ErrorCodeNotTradable, ErrorCodeCircularPath:
			return errors.UnsupportedVenuePair(venueName, inputMint, outputMint, errors.New(body.Error))
		}
	}
	return errors.VenueServiceError(venueName, status, errors.New(resp.Status()))
}

func parseAmount(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parsePct(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
