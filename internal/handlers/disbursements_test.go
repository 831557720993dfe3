package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/api"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

const disbursementBody = `{"reference":"PAYOUT-1","phone_number":"0712345678","amount":5000,` +
	`"command_id":"BusinessPayment","remarks":"Cashback","occasion":"Promo"}`

func pendingDisbursement() *models.Transaction {
	id := uuid.New()
	return &models.Transaction{
		ID:                  id,
		Kind:                models.TransactionKindDisbursement,
		State:               models.TransactionStatePending,
		CounterpartyAddress: "254712345678",
		AmountMinor:         5000,
		Reference:           "PAYOUT-1",
		Description:         "Cashback",
		CommandID:           "BusinessPayment",
		MerchantRequestID:   id.String(),
		CorrelationID:       "AG_20240101_1",
		CreatedAt:           time.Now().UTC(),
	}
}

func TestCreateDisbursement_Accepted(t *testing.T) {
	s := newTestServer(t)
	tx := pendingDisbursement()
	s.disbursements.On("Disburse", mock.Anything, service.DisbursementRequest{
		Reference:   "PAYOUT-1",
		PhoneNumber: "0712345678",
		CommandID:   "BusinessPayment",
		Remarks:     "Cashback",
		Occasion:    "Promo",
		AmountMinor: 5000,
	}).Return(tx, false, nil)

	rec := s.do(http.MethodPost, "/api/v1/disbursements", disbursementBody)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Header().Get(replayedHeader))
	body := decode[api.Transaction](t, rec)
	assert.Equal(t, "dsb_"+tx.ID.String(), body.ID)
	assert.Equal(t, "DISBURSEMENT", body.Kind)
	assert.Equal(t, "BusinessPayment", body.CommandID)
	assert.Equal(t, tx.ID.String(), body.MerchantRequestID)
}

func TestCreateDisbursement_ReplayedReference(t *testing.T) {
	s := newTestServer(t)
	tx := finished(pendingDisbursement(), models.TransactionStateSucceeded, 0, "completed")
	s.disbursements.On("Disburse", mock.Anything, mock.Anything).Return(tx, true, nil)

	rec := s.do(http.MethodPost, "/api/v1/disbursements", disbursementBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(replayedHeader))
	assert.Equal(t, "SUCCEEDED", decode[api.Transaction](t, rec).State)
}

func TestCreateDisbursement_Errors(t *testing.T) {
	tests := []struct {
		name           string
		tx             *models.Transaction
		err            error
		expectedStatus int
		expectedCode   api.ErrorCode
	}{
		{
			name: "reference reused for a different payout",
			err: &service.ServiceError{
				Code:    service.ErrCodeReferenceConflict,
				Message: "reference PAYOUT-1 already used for a different disbursement",
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   api.ErrorCodeReferenceConflict,
		},
		{
			name:           "credential failure before send",
			tx:             finished(pendingDisbursement(), models.TransactionStateFailed, 0, "not sent"),
			err:            &gateway.AuthError{Err: errors.New("timeout")},
			expectedStatus: http.StatusBadGateway,
			expectedCode:   api.ErrorCodeGatewayAuthFailed,
		},
		{
			name:           "invalid command",
			err:            &service.ValidationError{Field: "command_id", Code: service.ErrCodeInvalidCommand, Message: "unsupported"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   api.ErrorCodeInvalidCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.disbursements.On("Disburse", mock.Anything, mock.Anything).Return(tt.tx, false, tt.err)

			rec := s.do(http.MethodPost, "/api/v1/disbursements", disbursementBody)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decode[api.Error](t, rec)
			assert.Equal(t, tt.expectedCode, body.Error)
			assert.Equal(t, tt.tx != nil, body.Transaction != nil)
		})
	}
}

func TestCreateDisbursement_GatewayErrorLeavesPending(t *testing.T) {
	s := newTestServer(t)
	tx := pendingDisbursement()
	tx.CorrelationID = ""
	s.disbursements.On("Disburse", mock.Anything, mock.Anything).
		Return(tx, false, &gateway.GatewayError{HTTPStatus: 500, ErrorCode: "500.003.02"})

	rec := s.do(http.MethodPost, "/api/v1/disbursements", disbursementBody)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decode[api.Transaction](t, rec)
	assert.Equal(t, "PENDING", body.State)
	assert.Contains(t, body.Warning, "500.003.02")
}

func TestCreateDisbursement_InvalidRequests(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode api.ErrorCode
	}{
		{
			name:         "unknown command",
			body:         `{"reference":"P-1","phone_number":"0712345678","amount":1,"command_id":"Lottery","remarks":"x"}`,
			expectedCode: api.ErrorCodeInvalidCommand,
		},
		{
			name:         "missing remarks",
			body:         `{"reference":"P-1","phone_number":"0712345678","amount":1,"command_id":"SalaryPayment"}`,
			expectedCode: api.ErrorCodeInvalidDescription,
		},
		{
			name:         "zero amount",
			body:         `{"reference":"P-1","phone_number":"0712345678","amount":0,"command_id":"SalaryPayment","remarks":"x"}`,
			expectedCode: api.ErrorCodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(http.MethodPost, "/api/v1/disbursements", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.expectedCode, decode[api.Error](t, rec).Error)
			s.disbursements.AssertNotCalled(t, "Disburse", mock.Anything, mock.Anything)
		})
	}
}

func TestGetDisbursement(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s := newTestServer(t)
		tx := pendingDisbursement()
		s.disbursements.On("GetDisbursement", mock.Anything, tx.ID).Return(tx, nil)

		rec := s.do(http.MethodGet, "/api/v1/disbursements/dsb_"+tx.ID.String(), "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dsb_"+tx.ID.String(), decode[api.Transaction](t, rec).ID)
	})

	t.Run("payment id is not a disbursement id", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(http.MethodGet, "/api/v1/disbursements/pay_"+uuid.NewString(), "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		s.disbursements.AssertNotCalled(t, "GetDisbursement", mock.Anything, mock.Anything)
	})
}
