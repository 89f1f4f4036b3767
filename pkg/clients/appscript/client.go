package appscript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/storefront/internal/codec"
	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
)

// ErrRejected is returned when the script answers with success=false.
var ErrRejected = errors.New("appscript: request rejected")

// Actions understood by the webhook.
const (
	ActionSaveReceipt   = "saveReceipt"
	ActionSaveOrder     = "saveOrder"
	ActionUpdatePayment = "updatePayment"
	ActionApproveOrder  = "approveOrder"
	ActionDeleteOrder   = "deleteOrder"
)

// Client exposes the spreadsheet writes relayed through the Apps Script webhook.
type Client interface {
	SaveReceipt(ctx context.Context, receipt models.Receipt) error
	SaveOrder(ctx context.Context, order models.PendingOrder) error
	UpdatePayment(ctx context.Context, update PaymentUpdate) error
	ApproveOrder(ctx context.Context, customerName string, receipt models.Receipt) error
	DeleteOrder(ctx context.Context, customerName string) error
}

// PaymentUpdate addresses a receipt by id and, for receipts without one, by ordinal.
type PaymentUpdate struct {
	CustomerName     string          `json:"customerName"`
	ReceiptID        string          `json:"receiptId,omitempty"`
	Ordinal          int             `json:"receiptIndex"`
	Payments         models.Payments `json:"payments"`
	RemainingBalance float64         `json:"remainingBalance"`
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	url        string
}

// NewClient builds a webhook client.
func NewClient(cfg config.WebhookConfig) *APIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	restyClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &APIClient{httpClient: restyClient, url: cfg.URL}
}

type request struct {
	Action       string `json:"action"`
	CustomerName string `json:"customerName,omitempty"`
	Data         string `json:"data,omitempty"`
	*PaymentUpdate
}

// response is the envelope every action echoes.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// SaveReceipt appends a receipt cell to the customer's row.
func (c *APIClient) SaveReceipt(ctx context.Context, receipt models.Receipt) error {
	cell, err := codec.EncodeCell(receipt)
	if err != nil {
		return err
	}
	return c.post(ctx, request{Action: ActionSaveReceipt, CustomerName: receipt.CustomerName, Data: cell})
}

// SaveOrder replaces the customer's pending order.
func (c *APIClient) SaveOrder(ctx context.Context, order models.PendingOrder) error {
	cell, err := codec.EncodeCell(order)
	if err != nil {
		return err
	}
	return c.post(ctx, request{Action: ActionSaveOrder, CustomerName: order.CustomerName, Data: cell})
}

// UpdatePayment rewrites the payments of one receipt.
func (c *APIClient) UpdatePayment(ctx context.Context, update PaymentUpdate) error {
	return c.post(ctx, request{Action: ActionUpdatePayment, CustomerName: update.CustomerName, PaymentUpdate: &update})
}

// ApproveOrder moves the customer's pending order into the receipts sheet as receipt.
func (c *APIClient) ApproveOrder(ctx context.Context, customerName string, receipt models.Receipt) error {
	cell, err := codec.EncodeCell(receipt)
	if err != nil {
		return err
	}
	return c.post(ctx, request{Action: ActionApproveOrder, CustomerName: customerName, Data: cell})
}

// DeleteOrder removes the customer's pending order.
func (c *APIClient) DeleteOrder(ctx context.Context, customerName string) error {
	return c.post(ctx, request{Action: ActionDeleteOrder, CustomerName: customerName})
}

func (c *APIClient) post(ctx context.Context, payload request) error {
	result := new(response)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(result).
		ForceContentType("application/json").
		Post(c.url)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", payload.Action, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("webhook %s: status=%d, message=%s", payload.Action, resp.StatusCode(), result.reason())
	}

	if !result.Success {
		return fmt.Errorf("%w: %s: %s", ErrRejected, payload.Action, result.reason())
	}

	return nil
}

func (r *response) reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}
