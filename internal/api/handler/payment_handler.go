package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	dmongo "github.com/starlynx/utility-ledger/internal/data/mongo"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
)

// maxCallbackBody bounds provider callback payloads
const maxCallbackBody = 1 << 20

// PaymentInitiator starts external payments
type PaymentInitiator interface {
	Initiate(ctx context.Context, subject string, amount int64, accountReference string) (*payment.Intent, error)
}

// CallbackProcessor applies raw provider confirmations
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, raw []byte) error
}

// OutcomeAwaiter blocks until a payment resolves or the wait times out
type OutcomeAwaiter interface {
	AwaitTerminal(ctx context.Context, correlationID, subject string, timeout, interval time.Duration) (*payment.Intent, error)
}

// PaymentHandler handles HTTP requests for external payment operations
type PaymentHandler struct {
	tracker    PaymentInitiator
	reconciler CallbackProcessor
	poller     OutcomeAwaiter
	intentRepo payment.IntentRepository
	archive    dmongo.CallbackArchive
	logger     *slog.Logger
}

// NewPaymentHandler creates a new payment handler. archive may be nil when
// the callback archive is disabled.
func NewPaymentHandler(
	logger *slog.Logger,
	tracker PaymentInitiator,
	reconciler CallbackProcessor,
	poller OutcomeAwaiter,
	intentRepo payment.IntentRepository,
	archive dmongo.CallbackArchive,
) *PaymentHandler {
	return &PaymentHandler{
		tracker:    tracker,
		reconciler: reconciler,
		poller:     poller,
		intentRepo: intentRepo,
		archive:    archive,
		logger:     logger,
	}
}

// Initiate pushes a payment request to the provider and returns the PENDING
// intent. A provider-side failure is reported as 502: the request never
// reached a state worth recording.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	intent, err := h.tracker.Initiate(c.Request.Context(), req.Subject, req.Amount, req.AccountReference)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrEmptySubject), errors.Is(err, payment.ErrInvalidAmount):
			RespondBadRequest(c, err.Error())
		case errors.Is(err, payment.ErrInitiationFailed):
			RespondBadGateway(c, "Payment provider rejected the request")
		default:
			h.logger.Error("Failed to initiate payment", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondAccepted(c, mapIntentToResponse(intent))
}

// Callback receives asynchronous provider confirmations. A well-formed
// delivery is always acknowledged with 200, even when applying it fails
// internally; the provider's redelivery is the retry mechanism and a 5xx
// here would only cause duplicate deliveries we must absorb anyway. Only a
// payload that cannot be parsed is rejected with 400.
func (h *PaymentHandler) Callback(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.logger.Error("Failed to read callback body", "error", err)
		RespondBadRequest(c, "Unreadable callback body")
		return
	}

	if err := h.reconciler.HandleCallback(c.Request.Context(), raw); err != nil {
		if errors.Is(err, payment.ErrMalformedCallback) {
			RespondBadRequest(c, "Malformed callback payload")
			return
		}
		h.logger.Error("Callback processing failed, acknowledging anyway", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// GetByCorrelationID retrieves a payment intent by its correlation id
func (h *PaymentHandler) GetByCorrelationID(c *gin.Context) {
	correlationID := c.Param("correlation_id")

	intent, err := h.intentRepo.GetByCorrelationID(c.Request.Context(), correlationID)
	if err != nil {
		if errors.Is(err, payment.ErrIntentNotFound{}) {
			RespondNotFound(c, "Payment intent not found")
			return
		}
		h.logger.Error("Failed to get payment intent", "correlation_id", correlationID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapIntentToResponse(intent))
}

// Outcome blocks until the identified payment reaches a terminal state or
// the wait times out. A timeout is a normal answer: 200 with PENDING status
// and no terminal fields.
func (h *PaymentHandler) Outcome(c *gin.Context) {
	var params OutcomeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid outcome parameters")
		return
	}
	if params.CorrelationID == "" && params.Subject == "" {
		RespondBadRequest(c, "Either correlation_id or subject is required")
		return
	}

	timeout := time.Duration(params.TimeoutSeconds) * time.Second
	interval := time.Duration(params.IntervalSeconds) * time.Second

	intent, err := h.poller.AwaitTerminal(c.Request.Context(), params.CorrelationID, params.Subject, timeout, interval)
	if err != nil {
		h.logger.Error("Outcome wait failed",
			"correlation_id", params.CorrelationID,
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	if intent == nil {
		RespondOK(c, gin.H{
			"correlation_id": params.CorrelationID,
			"status":         string(payment.IntentStatusPending),
			"resolved":       false,
		})
		return
	}

	RespondOK(c, mapIntentToResponse(intent))
}

// Deliveries lists every archived raw provider delivery for a correlation
// id, oldest first. This is the dispute read path: it shows exactly what the
// provider sent, including malformed payloads.
func (h *PaymentHandler) Deliveries(c *gin.Context) {
	if h.archive == nil {
		RespondNotFound(c, "Callback archive is not enabled")
		return
	}

	correlationID := c.Param("correlation_id")
	records, err := h.archive.GetByCorrelationID(c.Request.Context(), correlationID)
	if err != nil {
		h.logger.Error("Failed to read callback archive", "correlation_id", correlationID, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]DeliveryResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, DeliveryResponse{
			CorrelationID: record.CorrelationID,
			Payload:       record.Payload,
			Malformed:     record.Malformed,
			ReceivedAt:    record.ReceivedAt.Format(time.RFC3339),
		})
	}

	RespondOK(c, responses)
}

// mapIntentToResponse maps a payment intent to a response DTO
func mapIntentToResponse(intent *payment.Intent) IntentResponse {
	return IntentResponse{
		CorrelationID:     intent.CorrelationID,
		MerchantRequestID: intent.MerchantRequestID,
		Subject:           intent.Subject,
		Amount:            intent.Amount,
		AccountReference:  intent.AccountReference,
		Status:            string(intent.Status),
		ResultCode:        intent.ResultCode,
		ResultDescription: intent.ResultDescription,
		ReceiptNumber:     intent.ReceiptNumber,
		CreatedAt:         intent.CreatedAt.Format(time.RFC3339),
		LastUpdatedAt:     intent.LastUpdatedAt.Format(time.RFC3339),
	}
}
