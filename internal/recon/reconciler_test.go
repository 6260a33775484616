package recon

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	dmongo "github.com/starlynx/utility-ledger/internal/data/mongo"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/payment/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCallbackArchive struct {
	mock.Mock
}

func (m *MockCallbackArchive) Archive(ctx context.Context, record *dmongo.ArchivedCallback) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockCallbackArchive) GetByCorrelationID(ctx context.Context, correlationID string) ([]*dmongo.ArchivedCallback, error) {
	args := m.Called(ctx, correlationID)
	if records, ok := args.Get(0).([]*dmongo.ArchivedCallback); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func callbackPayload(correlationID string, resultCode int, receipt string) []byte {
	metadata := ""
	if resultCode == 0 {
		metadata = fmt.Sprintf(`,
			"CallbackMetadata": {"Item": [
				{"Name": "Amount", "Value": 1500},
				{"Name": "MpesaReceiptNumber", "Value": %q},
				{"Name": "PhoneNumber", "Value": 254712345678}
			]}`, receipt)
	}
	return []byte(fmt.Sprintf(`{
		"Body": {"stkCallback": {
			"MerchantRequestID": "mr_1",
			"CheckoutRequestID": %q,
			"ResultCode": %d,
			"ResultDesc": "desc"%s
		}}
	}`, correlationID, resultCode, metadata))
}

type reconcilerFixture struct {
	reconciler     *Reconciler
	intentRepo     *MockIntentRepository
	forwardingRepo *MockForwardingRepository
	billingClient  *MockBillingClient
}

func newReconcilerFixture(t *testing.T, archive dmongo.CallbackArchive) *reconcilerFixture {
	intentRepo := new(MockIntentRepository)
	forwardingRepo := new(MockForwardingRepository)
	billingClient := new(MockBillingClient)
	writer := newTestWriter(t)
	forwarder := NewForwarder(billingClient, forwardingRepo, writer, testBillingConfig(), newTestLogger())
	forwarder.sleep = func(context.Context, time.Duration) error { return nil }

	return &reconcilerFixture{
		reconciler:     NewReconciler(intentRepo, forwarder, writer, archive, nil, newTestLogger()),
		intentRepo:     intentRepo,
		forwardingRepo: forwardingRepo,
		billingClient:  billingClient,
	}
}

func pendingIntent(correlationID string) *payment.Intent {
	intent, err := payment.NewIntent(correlationID, "mr_1", "254712345678", 1500, "ACC-9")
	if err != nil {
		panic(err)
	}
	return intent
}

func TestReconciler_HandleCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("MalformedPayloadRejected", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)

		err := fx.reconciler.HandleCallback(ctx, []byte(`{"Body": {}}`))

		assert.ErrorIs(t, err, payment.ErrMalformedCallback)
		fx.intentRepo.AssertNotCalled(t, "GetByCorrelationID")
	})

	t.Run("SuccessCallbackAppliedAndForwarded", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)
		intent := pendingIntent("ws_CO_1")

		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_1").Return(intent, nil)
		fx.intentRepo.On("Update", mock.Anything, mock.MatchedBy(func(i *payment.Intent) bool {
			return i.Status == payment.IntentStatusSuccess && i.ReceiptNumber == "NLJ7RT61SV"
		})).Return(nil)
		fx.forwardingRepo.On("Exists", mock.Anything, "NLJ7RT61SV").Return(false, nil)
		fx.billingClient.On("Post", mock.Anything, mock.Anything).Return(nil)
		fx.forwardingRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_1", 0, "NLJ7RT61SV"))

		require.NoError(t, err)
		fx.intentRepo.AssertExpectations(t)
		fx.billingClient.AssertNumberOfCalls(t, "Post", 1)
	})

	t.Run("FailureCallbackNeverForwards", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)
		intent := pendingIntent("ws_CO_2")

		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_2").Return(intent, nil)
		fx.intentRepo.On("Update", mock.Anything, mock.MatchedBy(func(i *payment.Intent) bool {
			return i.Status == payment.IntentStatusFailed
		})).Return(nil)

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_2", 1032, ""))

		require.NoError(t, err)
		fx.billingClient.AssertNotCalled(t, "Post")
		fx.forwardingRepo.AssertNotCalled(t, "Exists")
	})

	t.Run("DoubleDeliveryForwardsAtMostOnce", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)
		intent := pendingIntent("ws_CO_3")

		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_3").Return(intent, nil)
		fx.intentRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
		// First delivery: no record yet. Second: record exists.
		fx.forwardingRepo.On("Exists", mock.Anything, "NLJ7RT61SV").Return(false, nil).Once()
		fx.forwardingRepo.On("Exists", mock.Anything, "NLJ7RT61SV").Return(true, nil).Once()
		fx.billingClient.On("Post", mock.Anything, mock.Anything).Return(nil).Once()
		fx.forwardingRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		payload := callbackPayload("ws_CO_3", 0, "NLJ7RT61SV")
		require.NoError(t, fx.reconciler.HandleCallback(ctx, payload))
		require.NoError(t, fx.reconciler.HandleCallback(ctx, payload))

		assert.Equal(t, payment.IntentStatusSuccess, intent.Status, "Repeat delivery never regresses the outcome")
		fx.billingClient.AssertNumberOfCalls(t, "Post", 1)
	})

	t.Run("UnknownCorrelationIDSynthesizes", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)

		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_4").
			Return(nil, payment.ErrIntentNotFound{CorrelationID: "ws_CO_4"})
		fx.intentRepo.On("Create", mock.Anything, mock.MatchedBy(func(i *payment.Intent) bool {
			return i.CorrelationID == "ws_CO_4" &&
				i.Status == payment.IntentStatusSuccess &&
				i.Amount == 1500
		})).Return(nil)
		fx.forwardingRepo.On("Exists", mock.Anything, "NLJ7RT61SV").Return(false, nil)
		fx.billingClient.On("Post", mock.Anything, mock.Anything).Return(nil)
		fx.forwardingRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_4", 0, "NLJ7RT61SV"))

		require.NoError(t, err)
		fx.intentRepo.AssertExpectations(t)
	})

	t.Run("SynthesisLosingCreateRaceMergesExisting", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)
		existing := pendingIntent("ws_CO_5")

		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_5").
			Return(nil, payment.ErrIntentNotFound{CorrelationID: "ws_CO_5"}).Once()
		fx.intentRepo.On("Create", mock.Anything, mock.Anything).
			Return(payment.ErrDuplicateIntent{CorrelationID: "ws_CO_5"}).Once()
		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_5").Return(existing, nil).Once()
		fx.intentRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
		fx.forwardingRepo.On("Exists", mock.Anything, mock.Anything).Return(true, nil)

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_5", 0, "NLJ7RT61SV"))

		require.NoError(t, err)
		assert.Equal(t, payment.IntentStatusSuccess, existing.Status)
	})

	t.Run("ForwardingFailureDoesNotUnwindMerge", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)
		intent := pendingIntent("ws_CO_6")

		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_6").Return(intent, nil)
		fx.intentRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
		fx.forwardingRepo.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
		fx.billingClient.On("Post", mock.Anything, mock.Anything).
			Return(&billing.RetryableError{StatusCode: 503})

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_6", 0, "NLJ7RT61SV"))

		assert.NoError(t, err, "The recorded outcome stands; forwarding is replayed later")
		assert.Equal(t, payment.IntentStatusSuccess, intent.Status)
		fx.forwardingRepo.AssertNotCalled(t, "Create")
	})

	t.Run("StaleUpdateRetriesOnFreshRead", func(t *testing.T) {
		fx := newReconcilerFixture(t, nil)
		first := pendingIntent("ws_CO_7")
		fresh := pendingIntent("ws_CO_7")
		fresh.Version = 5

		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_7").Return(first, nil).Once()
		fx.intentRepo.On("Update", mock.Anything, mock.Anything).
			Return(payment.ErrStaleIntent{CorrelationID: "ws_CO_7"}).Once()
		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_7").Return(fresh, nil).Once()
		fx.intentRepo.On("Update", mock.Anything, mock.MatchedBy(func(i *payment.Intent) bool {
			return i.Version == 6
		})).Return(nil).Once()
		fx.forwardingRepo.On("Exists", mock.Anything, mock.Anything).Return(true, nil)

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_7", 0, "NLJ7RT61SV"))

		require.NoError(t, err)
		fx.intentRepo.AssertExpectations(t)
	})

	t.Run("ArchivesRawDeliveries", func(t *testing.T) {
		archive := new(MockCallbackArchive)
		fx := newReconcilerFixture(t, archive)
		intent := pendingIntent("ws_CO_8")

		archive.On("Archive", mock.Anything, mock.MatchedBy(func(r *dmongo.ArchivedCallback) bool {
			return r.CorrelationID == "ws_CO_8" && !r.Malformed
		})).Return(nil)
		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_8").Return(intent, nil)
		fx.intentRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_8", 1001, ""))

		require.NoError(t, err)
		archive.AssertExpectations(t)
	})

	t.Run("ArchivesMalformedDeliveries", func(t *testing.T) {
		archive := new(MockCallbackArchive)
		fx := newReconcilerFixture(t, archive)

		archive.On("Archive", mock.Anything, mock.MatchedBy(func(r *dmongo.ArchivedCallback) bool {
			return r.Malformed && r.CorrelationID == ""
		})).Return(nil)

		err := fx.reconciler.HandleCallback(ctx, []byte(`not json`))

		assert.ErrorIs(t, err, payment.ErrMalformedCallback)
		archive.AssertExpectations(t)
	})

	t.Run("ArchiveFailureNeverBlocksReconciliation", func(t *testing.T) {
		archive := new(MockCallbackArchive)
		fx := newReconcilerFixture(t, archive)
		intent := pendingIntent("ws_CO_9")

		archive.On("Archive", mock.Anything, mock.Anything).Return(errors.New("mongo down"))
		fx.intentRepo.On("GetByCorrelationID", mock.Anything, "ws_CO_9").Return(intent, nil)
		fx.intentRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		err := fx.reconciler.HandleCallback(ctx, callbackPayload("ws_CO_9", 1001, ""))

		assert.NoError(t, err)
	})
}
