package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

func validDisbursement() DisbursementRequest {
	return DisbursementRequest{
		Reference:   "PAYOUT-2024-0001",
		PhoneNumber: "0708374149",
		AmountMinor: 1000,
		CommandID:   CommandBusinessPayment,
		Remarks:     "Refund for order 1",
	}
}

func (h *harness) acceptB2C(conversationID string) *mock.Call {
	return h.sender.On("Send", mock.Anything, gateway.EndpointB2C, mock.Anything, testToken, mock.Anything).
		Run(func(args mock.Arguments) {
			req := args.Get(2).(*gateway.B2CRequest)
			out := args.Get(4).(*gateway.B2CResponse)
			*out = gateway.B2CResponse{
				ConversationID:           conversationID,
				OriginatorConversationID: req.OriginatorConversationID,
				ResponseCode:             "0",
				ResponseDescription:      "Accept the service request successfully.",
			}
		}).
		Return(nil)
}

func TestDisbursementService_Disburse(t *testing.T) {
	t.Run("accepted disbursement stays pending", func(t *testing.T) {
		h := newHarness(t)
		h.withToken()
		h.acceptB2C("AG_20191219_00005797af5d7d75f652").Run(func(args mock.Arguments) {
			req := args.Get(2).(*gateway.B2CRequest)
			assert.Equal(t, "testapi", req.InitiatorName)
			assert.Equal(t, "encrypted-credential", req.SecurityCredential)
			assert.Equal(t, CommandBusinessPayment, req.CommandID)
			assert.Equal(t, "600000", req.PartyA)
			assert.Equal(t, "254708374149", req.PartyB)
			assert.Equal(t, "1000", req.Amount.String())
			assert.NotEmpty(t, req.ResultURL)
			assert.NotEmpty(t, req.QueueTimeOutURL)

			*args.Get(4).(*gateway.B2CResponse) = gateway.B2CResponse{
				ConversationID:           "AG_20191219_00005797af5d7d75f652",
				OriginatorConversationID: req.OriginatorConversationID,
				ResponseCode:             "0",
			}
		})

		tx, replayed, err := h.disbursementService().Disburse(context.Background(), validDisbursement())

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, models.TransactionKindDisbursement, tx.Kind)
		assert.Equal(t, models.TransactionStatePending, tx.State)

		stored := h.reload(t, tx.ID)
		assert.Equal(t, "AG_20191219_00005797af5d7d75f652", stored.CorrelationID)
		assert.Equal(t, tx.ID.String(), stored.MerchantRequestID)
	})

	t.Run("same reference replays the recorded disbursement", func(t *testing.T) {
		h := newHarness(t)
		h.withToken()
		h.acceptB2C("AG_1").Once()
		svc := h.disbursementService()

		first, replayed, err := svc.Disburse(context.Background(), validDisbursement())
		require.NoError(t, err)
		assert.False(t, replayed)

		second, replayed, err := svc.Disburse(context.Background(), validDisbursement())
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, first.ID, second.ID)

		h.sender.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("reference reused for a different payout", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*DisbursementRequest)
		}{
			{name: "amount", mutate: func(r *DisbursementRequest) { r.AmountMinor++ }},
			{name: "phone number", mutate: func(r *DisbursementRequest) { r.PhoneNumber = "0712345678" }},
			{name: "command", mutate: func(r *DisbursementRequest) { r.CommandID = CommandBusinessPayment }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				existing := h.seedDisbursement(t, "PAYOUT-2024-0001", "AG_2", time.Now())
				req := validDisbursement()
				req.CommandID = existing.CommandID
				tt.mutate(&req)

				tx, _, err := h.disbursementService().Disburse(context.Background(), req)

				assert.Nil(t, tx)
				var svcErr *ServiceError
				require.ErrorAs(t, err, &svcErr)
				assert.Equal(t, ErrCodeReferenceConflict, svcErr.Code)
				h.sender.AssertNumberOfCalls(t, "Send", 0)
			})
		}
	})

	t.Run("reference with identical parameters replays the seeded payout", func(t *testing.T) {
		h := newHarness(t)
		existing := h.seedDisbursement(t, "PAYOUT-2024-0001", "AG_2", time.Now())
		req := validDisbursement()
		req.CommandID = existing.CommandID

		tx, replayed, err := h.disbursementService().Disburse(context.Background(), req)

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, existing.ID, tx.ID)
		h.sender.AssertNumberOfCalls(t, "Send", 0)
	})

	t.Run("concurrent retries with one reference send once", func(t *testing.T) {
		h := newHarness(t)
		h.withToken()
		h.acceptB2C("AG_3").Once()
		svc := h.disbursementService()

		const callers = 10
		ids := make(chan string, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tx, _, err := svc.Disburse(context.Background(), validDisbursement())
				if assert.NoError(t, err) {
					ids <- tx.ID.String()
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[string]bool{}
		for id := range ids {
			seen[id] = true
		}
		assert.Len(t, seen, 1)
		h.sender.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("gateway errors leave the disbursement pending", func(t *testing.T) {
		for _, gwErr := range []error{
			&gateway.GatewayError{Endpoint: gateway.EndpointB2C, HTTPStatus: 500},
			&gateway.GatewayError{Endpoint: gateway.EndpointB2C, HTTPStatus: 400, ErrorCode: "400.002.02"},
			&gateway.TransportError{Endpoint: gateway.EndpointB2C, Err: context.DeadlineExceeded},
		} {
			h := newHarness(t)
			h.withToken()
			h.sender.On("Send", mock.Anything, gateway.EndpointB2C, mock.Anything, testToken, mock.Anything).Return(gwErr)

			tx, _, err := h.disbursementService().Disburse(context.Background(), validDisbursement())

			require.ErrorIs(t, err, gwErr)
			require.NotNil(t, tx)
			assert.Equal(t, models.TransactionStatePending, h.reload(t, tx.ID).State)
		}
	})

	t.Run("unaccepted response code leaves the disbursement pending", func(t *testing.T) {
		h := newHarness(t)
		h.withToken()
		h.sender.On("Send", mock.Anything, gateway.EndpointB2C, mock.Anything, testToken, mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(4).(*gateway.B2CResponse) = gateway.B2CResponse{ResponseCode: "1", ResponseDescription: "Rejected"}
			}).
			Return(nil)

		tx, _, err := h.disbursementService().Disburse(context.Background(), validDisbursement())

		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatePending, h.reload(t, tx.ID).State)
	})

	t.Run("credential failure fails the disbursement", func(t *testing.T) {
		h := newHarness(t)
		h.tokens.On("Token", mock.Anything).
			Return(gateway.Credential{}, &gateway.AuthError{Err: errors.New("connection refused")})

		tx, _, err := h.disbursementService().Disburse(context.Background(), validDisbursement())

		var authErr *gateway.AuthError
		require.ErrorAs(t, err, &authErr)
		require.NotNil(t, tx)
		assert.Equal(t, models.TransactionStateFailed, h.reload(t, tx.ID).State)
		h.sender.AssertNumberOfCalls(t, "Send", 0)
	})

	t.Run("caller cancellation during token refresh leaves the disbursement pending", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h.tokens.On("Token", mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(gateway.Credential{}, &gateway.TransportError{Endpoint: gateway.EndpointOAuth, Err: context.Canceled}).
			Once()

		tx, replayed, err := h.disbursementService().Disburse(ctx, validDisbursement())

		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, replayed)
		require.NotNil(t, tx)
		assert.Equal(t, models.TransactionStatePending, h.reload(t, tx.ID).State)
		h.sender.AssertNumberOfCalls(t, "Send", 0)
	})
}

func TestDisbursementService_Validation(t *testing.T) {
	tests := []struct {
		name  string
		field string
		req   func(*DisbursementRequest)
	}{
		{name: "missing reference", field: "reference", req: func(r *DisbursementRequest) { r.Reference = "" }},
		{name: "bad phone", field: "phone_number", req: func(r *DisbursementRequest) { r.PhoneNumber = "07" }},
		{name: "negative amount", field: "amount", req: func(r *DisbursementRequest) { r.AmountMinor = -1 }},
		{name: "unknown command", field: "command_id", req: func(r *DisbursementRequest) { r.CommandID = "CashOut" }},
		{name: "missing remarks", field: "remarks", req: func(r *DisbursementRequest) { r.Remarks = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := validDisbursement()
			tt.req(&req)

			_, _, err := h.disbursementService().Disburse(context.Background(), req)

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.field, valErr.Field)
			h.sender.AssertNumberOfCalls(t, "Send", 0)
		})
	}
}
