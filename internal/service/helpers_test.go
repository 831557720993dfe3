package service

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	gatewaymocks "github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway/mocks"
	brokermocks "github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/messagebroker/mocks"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

const testToken = "token-1"

func testLogger() *slog.Logger {
	return config.DiscardLogger()
}

func testGatewayConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		BaseURL:         "https://gateway.test",
		ShortCode:       "174379",
		PassKey:         "passkey",
		TransactionType: "CustomerPayBillOnline",
		CallbackURL:     "https://merchant.test/callbacks/mpesa/stk",
		B2CShortCode:    "600000",
		InitiatorName:   "testapi",
		ResultURL:       "https://merchant.test/callbacks/mpesa/b2c/result",
		QueueTimeoutURL: "https://merchant.test/callbacks/mpesa/b2c/timeout",
	}
}

// harness wires services over the in-memory ledger and mocked gateway collaborators
type harness struct {
	ledger    *repository.MemoryTransactionRepository
	orphans   *repository.MemoryOrphanRepository
	audit     *repository.MemoryAuditRepository
	publisher *brokermocks.MockPublisher
	sender    *gatewaymocks.MockSender
	tokens    *gatewaymocks.MockTokenSource
	settler   *Settler
	cfg       *config.GatewayConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		ledger:    repository.NewMemoryTransactionRepository(),
		orphans:   repository.NewMemoryOrphanRepository(),
		audit:     repository.NewMemoryAuditRepository(),
		publisher: brokermocks.NewMockPublisher(t),
		sender:    gatewaymocks.NewMockSender(t),
		tokens:    gatewaymocks.NewMockTokenSource(t),
		cfg:       testGatewayConfig(),
	}
	h.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.settler = NewSettler(h.ledger, h.audit, h.publisher, "payments", testLogger())
	return h
}

func (h *harness) withToken() {
	h.tokens.On("Token", mock.Anything).
		Return(gateway.Credential{Token: testToken, ExpiresAt: time.Now().Add(time.Hour)}, nil).
		Maybe()
}

func (h *harness) paymentService() *PaymentService {
	return NewPaymentService(h.ledger, h.sender, h.tokens, h.settler, h.audit, h.cfg, testLogger())
}

func (h *harness) disbursementService() *DisbursementService {
	return NewDisbursementService(h.ledger, h.sender, h.tokens, h.settler, h.audit, h.cfg, "encrypted-credential", testLogger())
}

func (h *harness) statusService(hardTimeout time.Duration) *StatusService {
	return NewStatusService(h.ledger, h.sender, h.tokens, h.settler, h.cfg, hardTimeout, testLogger())
}

func (h *harness) callbackService(window time.Duration) *CallbackService {
	return NewCallbackService(h.ledger, h.orphans, h.audit, h.settler, AmountCodec{}, window, testLogger())
}

// acceptPush answers every push with an accepted acknowledgement carrying checkoutID
func (h *harness) acceptPush(checkoutID string) *mock.Call {
	return h.sender.On("Send", mock.Anything, gateway.EndpointSTKPush, mock.Anything, testToken, mock.Anything).
		Run(func(args mock.Arguments) {
			out := args.Get(4).(*gateway.STKPushResponse)
			*out = gateway.STKPushResponse{
				MerchantRequestID:   "29115-34620561-1",
				CheckoutRequestID:   checkoutID,
				ResponseCode:        "0",
				ResponseDescription: "Success. Request accepted for processing",
			}
		}).
		Return(nil)
}

// answerQuery answers status queries with resultCode
func (h *harness) answerQuery(resultCode int, desc string) *mock.Call {
	return h.sender.On("Send", mock.Anything, gateway.EndpointSTKQuery, mock.Anything, testToken, mock.Anything).
		Run(func(args mock.Arguments) {
			code := gateway.FlexInt(resultCode)
			out := args.Get(4).(*gateway.STKQueryResponse)
			*out = gateway.STKQueryResponse{
				ResponseCode: "0",
				ResultCode:   &code,
				ResultDesc:   desc,
			}
		}).
		Return(nil)
}

func (h *harness) seedPush(t *testing.T, correlationID string, createdAt time.Time) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ID:                  uuid.New(),
		Kind:                models.TransactionKindCustomerPush,
		State:               models.TransactionStatePending,
		CounterpartyAddress: "254712345678",
		AmountMinor:         500,
		Reference:           "INV-001",
		Description:         "Payment",
		CorrelationID:       correlationID,
		CreatedAt:           createdAt,
	}
	require.NoError(t, h.ledger.Create(context.Background(), tx))
	return tx
}

func (h *harness) seedDisbursement(t *testing.T, reference, correlationID string, createdAt time.Time) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ID:                  uuid.New(),
		Kind:                models.TransactionKindDisbursement,
		State:               models.TransactionStatePending,
		CounterpartyAddress: "254708374149",
		AmountMinor:         1000,
		Reference:           reference,
		Description:         "Salary",
		CommandID:           CommandSalaryPayment,
		CorrelationID:       correlationID,
		CreatedAt:           createdAt,
	}
	require.NoError(t, h.ledger.Create(context.Background(), tx))
	return tx
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *models.Transaction {
	t.Helper()
	tx, err := h.ledger.FindByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func (h *harness) auditEvents(id uuid.UUID) []string {
	entries, _ := h.audit.ListByTransaction(context.Background(), id) //nolint:errcheck // memory repository never fails
	events := make([]string, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Event)
	}
	return events
}

func (h *harness) countEvents(event string) int {
	n := 0
	for _, e := range h.audit.Entries() {
		if e.Event == event {
			n++
		}
	}
	return n
}

func pushSuccessCallback(checkoutID, receipt string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": %q,
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": %d},
          {"Name": "MpesaReceiptNumber", "Value": %q},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`, checkoutID, amount, receipt))
}

func pushFailureCallback(checkoutID string, code int, desc string) []byte {
	return []byte(fmt.Sprintf(`{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": %q,
      "ResultCode": %d,
      "ResultDesc": %q
    }
  }
}`, checkoutID, code, desc))
}

func b2cSuccessResult(conversationID, originatorID, receipt string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{
  "Result": {
    "ResultType": 0,
    "ResultCode": 0,
    "ResultDesc": "The service request is processed successfully.",
    "OriginatorConversationID": %q,
    "ConversationID": %q,
    "TransactionID": %q,
    "ResultParameters": {
      "ResultParameter": [
        {"Key": "TransactionAmount", "Value": %d},
        {"Key": "TransactionReceipt", "Value": %q},
        {"Key": "ReceiverPartyPublicName", "Value": "254708374149 - John Doe"}
      ]
    }
  }
}`, originatorID, conversationID, receipt, amount, receipt))
}

func b2cTimeout(conversationID, originatorID, desc string) []byte {
	body := fmt.Sprintf(`{"Result":{"ResultType":0,"OriginatorConversationID":%q,"ConversationID":%q`, originatorID, conversationID)
	if desc != "" {
		body += fmt.Sprintf(`,"ResultDesc":%q`, desc)
	}
	return []byte(body + "}}")
}
