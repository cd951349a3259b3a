package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tripbooking/internal/domain"
	"tripbooking/internal/utils"
)

const (
	// SuccessMsg is the only responseMsg that means the charge went through.
	SuccessMsg = "RCS_SUCCESS"

	schemaVersion      = "1.0"
	channelName        = "WEB"
	serviceName        = "API_PURCHASE"
	paymentMethod      = "mwallet_account"
	defaultDescription = "Trip Booking Payment"
	maxResponseBytes   = 1 << 20
)

// Client charges a payer's mobile-money wallet.
type Client interface {
	Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error)
}

// PurchaseRequest carries one charge. RequestID and ReferenceID carry the
// idempotency key so a retried attempt is recognisable by the provider.
type PurchaseRequest struct {
	RequestID    string
	ReferenceID  string
	InvoiceID    string
	PayerAccount string
	Amount       float64
	Currency     string
	Description  string
}

// PurchaseResult is a parsed provider answer. Raw keeps the exact body for
// the payment log.
type PurchaseResult struct {
	ResponseMsg   string
	ResponseCode  string
	TransactionID string
	ReferenceID   string
	Raw           []byte
}

func (r PurchaseResult) Succeeded() bool {
	return r.ResponseMsg == SuccessMsg
}

// DeclineCode is what the payment log records for a non-success answer.
func (r PurchaseResult) DeclineCode() string {
	if r.ResponseMsg != "" {
		return r.ResponseMsg
	}
	return r.ResponseCode
}

type WaafiConfig struct {
	BaseURL     string
	MerchantUID string
	APIUserID   string
	APIKey      string
	Timeout     time.Duration
}

// WaafiClient implements Client against the WaafiPay ASM endpoint.
type WaafiClient struct {
	cfg  WaafiConfig
	http *http.Client
}

func NewWaafiClient(cfg WaafiConfig) *WaafiClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WaafiClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type waafiRequest struct {
	SchemaVersion string        `json:"schemaVersion"`
	RequestID     string        `json:"requestId"`
	Timestamp     string        `json:"timestamp"`
	ChannelName   string        `json:"channelName"`
	ServiceName   string        `json:"serviceName"`
	ServiceParams serviceParams `json:"serviceParams"`
}

type serviceParams struct {
	MerchantUID     string          `json:"merchantUid"`
	APIUserID       string          `json:"apiUserId"`
	APIKey          string          `json:"apiKey"`
	PaymentMethod   string          `json:"paymentMethod"`
	PayerInfo       payerInfo       `json:"payerInfo"`
	TransactionInfo transactionInfo `json:"transactionInfo"`
}

type payerInfo struct {
	AccountNo string `json:"accountNo"`
}

type transactionInfo struct {
	ReferenceID string      `json:"referenceId"`
	InvoiceID   string      `json:"invoiceId"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Description string      `json:"description"`
}

type waafiResponse struct {
	ResponseCode  string `json:"responseCode"`
	ResponseMsg   string `json:"responseMsg"`
	TransactionID string `json:"transactionId"`
	ReferenceID   string `json:"referenceId"`
	Params        struct {
		TransactionID string `json:"transactionId"`
		ReferenceID   string `json:"referenceId"`
	} `json:"params"`
}

// buildRequest renders the provider payload: digits-only payer account and
// an amount fixed to two decimals.
func (c *WaafiClient) buildRequest(req PurchaseRequest, now time.Time) waafiRequest {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = defaultDescription
	}
	return waafiRequest{
		SchemaVersion: schemaVersion,
		RequestID:     req.RequestID,
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
		ChannelName:   channelName,
		ServiceName:   serviceName,
		ServiceParams: serviceParams{
			MerchantUID:   c.cfg.MerchantUID,
			APIUserID:     c.cfg.APIUserID,
			APIKey:        c.cfg.APIKey,
			PaymentMethod: paymentMethod,
			PayerInfo:     payerInfo{AccountNo: utils.DigitsOnly(req.PayerAccount)},
			TransactionInfo: transactionInfo{
				ReferenceID: req.ReferenceID,
				InvoiceID:   req.InvoiceID,
				Amount:      json.Number(utils.FormatMoney(utils.RoundMoney(req.Amount))),
				Currency:    req.Currency,
				Description: desc,
			},
		},
	}
}

// Purchase returns a GatewayTransportError whenever the outcome is unknown:
// network failure, timeout, cancellation, or a body that is not a
// well-formed provider answer. Raw is filled whenever a body was read.
func (c *WaafiClient) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	payload, err := json.Marshal(c.buildRequest(req, utils.NowUTC()))
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("marshal purchase request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("build purchase request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return PurchaseResult{}, domain.GatewayTransportError{Op: "purchase", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return PurchaseResult{Raw: raw}, domain.GatewayTransportError{Op: "read response", Err: err}
	}
	return parseResponse(resp.StatusCode, raw)
}

func parseResponse(status int, raw []byte) (PurchaseResult, error) {
	result := PurchaseResult{Raw: raw}

	var body waafiResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return result, domain.GatewayTransportError{Op: "decode response", Err: fmt.Errorf("http %d: %w", status, err)}
	}
	if strings.TrimSpace(body.ResponseMsg) == "" {
		return result, domain.GatewayTransportError{Op: "decode response", Err: errors.New("missing responseMsg")}
	}
	if status >= http.StatusInternalServerError {
		return result, domain.GatewayTransportError{Op: "purchase", Err: fmt.Errorf("http %d: %s", status, body.ResponseMsg)}
	}

	result.ResponseMsg = body.ResponseMsg
	result.ResponseCode = body.ResponseCode
	result.TransactionID = firstNonEmpty(body.TransactionID, body.Params.TransactionID)
	result.ReferenceID = firstNonEmpty(body.ReferenceID, body.Params.ReferenceID)
	return result, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
