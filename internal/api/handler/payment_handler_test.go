package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	dmongo "github.com/starlynx/utility-ledger/internal/data/mongo"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingIntent(correlationID string) *payment.Intent {
	now := time.Now().UTC()
	return &payment.Intent{
		CorrelationID:     correlationID,
		MerchantRequestID: "mr_1",
		Subject:           "254712345678",
		Amount:            1500,
		AccountReference:  "ACC-9",
		Status:            payment.IntentStatusPending,
		CreatedAt:         now,
		LastUpdatedAt:     now,
	}
}

func successIntent(correlationID string) *payment.Intent {
	intent := pendingIntent(correlationID)
	code := 0
	intent.Status = payment.IntentStatusSuccess
	intent.ResultCode = &code
	intent.ResultDescription = "The service request is processed successfully."
	intent.ReceiptNumber = "NLJ7RT61SV"
	return intent
}

func newPaymentRouter(tracker *MockInitiator, processor *MockProcessor, awaiter *MockAwaiter, repo *MockIntentReader) *gin.Engine {
	return newPaymentRouterWithArchive(tracker, processor, awaiter, repo, nil)
}

func newPaymentRouterWithArchive(tracker *MockInitiator, processor *MockProcessor, awaiter *MockAwaiter, repo *MockIntentReader, archive dmongo.CallbackArchive) *gin.Engine {
	handler := NewPaymentHandler(newTestLogger(), tracker, processor, awaiter, repo, archive)
	router := setupTestRouter()
	router.POST("/payments", handler.Initiate)
	router.POST("/payments/callback", handler.Callback)
	router.GET("/payments/outcome", handler.Outcome)
	router.GET("/payments/:correlation_id", handler.GetByCorrelationID)
	router.GET("/payments/:correlation_id/deliveries", handler.Deliveries)
	return router
}

func TestPaymentHandler_Initiate(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		tracker := new(MockInitiator)
		router := newPaymentRouter(tracker, new(MockProcessor), new(MockAwaiter), new(MockIntentReader))

		tracker.On("Initiate", mock.Anything, "254712345678", int64(1500), "ACC-9").
			Return(pendingIntent("ws_CO_1"), nil)

		body, _ := json.Marshal(InitiatePaymentRequest{
			Subject:          "254712345678",
			Amount:           1500,
			AccountReference: "ACC-9",
		})
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "ws_CO_1", data["correlation_id"])
		assert.Equal(t, "PENDING", data["status"])
		tracker.AssertExpectations(t)
	})

	t.Run("ProviderRejection", func(t *testing.T) {
		tracker := new(MockInitiator)
		router := newPaymentRouter(tracker, new(MockProcessor), new(MockAwaiter), new(MockIntentReader))

		tracker.On("Initiate", mock.Anything, "254712345678", int64(1500), "").
			Return(nil, fmt.Errorf("%w: status 400", payment.ErrInitiationFailed))

		body, _ := json.Marshal(InitiatePaymentRequest{Subject: "254712345678", Amount: 1500})
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		tracker := new(MockInitiator)
		router := newPaymentRouter(tracker, new(MockProcessor), new(MockAwaiter), new(MockIntentReader))

		tracker.On("Initiate", mock.Anything, " ", int64(100), "").
			Return(nil, payment.ErrEmptySubject)

		body := []byte(`{"subject":" ","amount":100}`)
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingAmountRejectedByBinding", func(t *testing.T) {
		tracker := new(MockInitiator)
		router := newPaymentRouter(tracker, new(MockProcessor), new(MockAwaiter), new(MockIntentReader))

		body := []byte(`{"subject":"254712345678"}`)
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		tracker.AssertNotCalled(t, "Initiate")
	})
}

func TestPaymentHandler_Callback(t *testing.T) {
	payload := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`)

	t.Run("WellFormedDeliveryAcknowledged", func(t *testing.T) {
		processor := new(MockProcessor)
		router := newPaymentRouter(new(MockInitiator), processor, new(MockAwaiter), new(MockIntentReader))

		processor.On("HandleCallback", mock.Anything, payload).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/payments/callback", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var ack map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
		assert.Equal(t, float64(0), ack["ResultCode"])
		processor.AssertExpectations(t)
	})

	t.Run("InternalFailureStillAcknowledged", func(t *testing.T) {
		processor := new(MockProcessor)
		router := newPaymentRouter(new(MockInitiator), processor, new(MockAwaiter), new(MockIntentReader))

		processor.On("HandleCallback", mock.Anything, payload).Return(errors.New("db unavailable"))

		req := httptest.NewRequest(http.MethodPost, "/payments/callback", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, "Redelivery is the provider's retry path; a 5xx buys nothing")
	})

	t.Run("MalformedPayloadRejected", func(t *testing.T) {
		processor := new(MockProcessor)
		router := newPaymentRouter(new(MockInitiator), processor, new(MockAwaiter), new(MockIntentReader))

		garbage := []byte(`{"unexpected":true}`)
		processor.On("HandleCallback", mock.Anything, garbage).
			Return(fmt.Errorf("%w: missing stkCallback", payment.ErrMalformedCallback))

		req := httptest.NewRequest(http.MethodPost, "/payments/callback", bytes.NewReader(garbage))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPaymentHandler_GetByCorrelationID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo := new(MockIntentReader)
		router := newPaymentRouter(new(MockInitiator), new(MockProcessor), new(MockAwaiter), repo)

		repo.On("GetByCorrelationID", mock.Anything, "ws_CO_1").Return(successIntent("ws_CO_1"), nil)

		req := httptest.NewRequest(http.MethodGet, "/payments/ws_CO_1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "SUCCESS", data["status"])
		assert.Equal(t, "NLJ7RT61SV", data["receipt_number"])
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockIntentReader)
		router := newPaymentRouter(new(MockInitiator), new(MockProcessor), new(MockAwaiter), repo)

		repo.On("GetByCorrelationID", mock.Anything, "ws_CO_missing").
			Return(nil, payment.ErrIntentNotFound{CorrelationID: "ws_CO_missing"})

		req := httptest.NewRequest(http.MethodGet, "/payments/ws_CO_missing", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPaymentHandler_Deliveries(t *testing.T) {
	t.Run("ListsArchivedDeliveries", func(t *testing.T) {
		archive := new(MockDeliveryArchive)
		router := newPaymentRouterWithArchive(new(MockInitiator), new(MockProcessor), new(MockAwaiter), new(MockIntentReader), archive)

		archive.On("GetByCorrelationID", mock.Anything, "ws_CO_1").Return([]*dmongo.ArchivedCallback{
			{CorrelationID: "ws_CO_1", Payload: `{"Body":{}}`, ReceivedAt: time.Now().UTC()},
			{CorrelationID: "ws_CO_1", Payload: `{"Body":{}}`, ReceivedAt: time.Now().UTC()},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/payments/ws_CO_1/deliveries", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		deliveries := resp.Data.([]interface{})
		assert.Len(t, deliveries, 2)
		archive.AssertExpectations(t)
	})

	t.Run("ArchiveDisabled", func(t *testing.T) {
		router := newPaymentRouter(new(MockInitiator), new(MockProcessor), new(MockAwaiter), new(MockIntentReader))

		req := httptest.NewRequest(http.MethodGet, "/payments/ws_CO_1/deliveries", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ArchiveReadFailure", func(t *testing.T) {
		archive := new(MockDeliveryArchive)
		router := newPaymentRouterWithArchive(new(MockInitiator), new(MockProcessor), new(MockAwaiter), new(MockIntentReader), archive)

		archive.On("GetByCorrelationID", mock.Anything, "ws_CO_1").Return(nil, errors.New("mongo unavailable"))

		req := httptest.NewRequest(http.MethodGet, "/payments/ws_CO_1/deliveries", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestPaymentHandler_Outcome(t *testing.T) {
	t.Run("Resolved", func(t *testing.T) {
		awaiter := new(MockAwaiter)
		router := newPaymentRouter(new(MockInitiator), new(MockProcessor), awaiter, new(MockIntentReader))

		awaiter.On("AwaitTerminal", mock.Anything, "ws_CO_1", "", 30*time.Second, time.Duration(0)).
			Return(successIntent("ws_CO_1"), nil)

		req := httptest.NewRequest(http.MethodGet, "/payments/outcome?correlation_id=ws_CO_1&timeout=30", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "SUCCESS", data["status"])
		awaiter.AssertExpectations(t)
	})

	t.Run("TimeoutReportsPending", func(t *testing.T) {
		awaiter := new(MockAwaiter)
		router := newPaymentRouter(new(MockInitiator), new(MockProcessor), awaiter, new(MockIntentReader))

		awaiter.On("AwaitTerminal", mock.Anything, "ws_CO_1", "", time.Duration(0), time.Duration(0)).
			Return(nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/payments/outcome?correlation_id=ws_CO_1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "PENDING", data["status"])
		assert.Equal(t, false, data["resolved"])
	})

	t.Run("RequiresAnIdentifier", func(t *testing.T) {
		awaiter := new(MockAwaiter)
		router := newPaymentRouter(new(MockInitiator), new(MockProcessor), awaiter, new(MockIntentReader))

		req := httptest.NewRequest(http.MethodGet, "/payments/outcome", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		awaiter.AssertNotCalled(t, "AwaitTerminal")
	})
}
