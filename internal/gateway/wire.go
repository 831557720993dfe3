package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Endpoint paths relative to the gateway base URL.
const (
	EndpointOAuth    = "/oauth/v1/generate?grant_type=client_credentials"
	EndpointSTKPush  = "/mpesa/stkpush/v1/processrequest"
	EndpointSTKQuery = "/mpesa/stkpushquery/v1/query"
	EndpointB2C      = "/mpesa/b2c/v1/paymentrequest"
)

// ResponseCodeAccepted is the ResponseCode of a request the gateway accepted for processing.
const ResponseCodeAccepted = "0"

// ResultCodeStillProcessing is the query ResultCode returned while the prompt is outstanding.
const ResultCodeStillProcessing = 4999

const timestampLayout = "20060102150405"

var eastAfricaTime = time.FixedZone("EAT", 3*60*60)

// Timestamp formats t the way the gateway expects it: yyyyMMddHHmmss in East Africa Time.
func Timestamp(t time.Time) string {
	return t.In(eastAfricaTime).Format(timestampLayout)
}

// ParseTimestamp parses a gateway timestamp such as the TransactionDate callback item.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, eastAfricaTime)
}

// Password derives the STK request password from the shortcode, passkey and timestamp.
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// Response is implemented by every typed gateway response body.
type Response interface {
	Validate() error
}

// FlexInt decodes an integer sent either as a JSON number or a numeric string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" {
		return errors.New("empty integer value")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexInt(n)
	return nil
}

// TokenResponse is the body returned by the OAuth endpoint
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   FlexInt `json:"expires_in"`
}

func (r *TokenResponse) Validate() error {
	if r.AccessToken == "" {
		return errors.New("access_token is empty")
	}
	if r.ExpiresIn <= 0 {
		return fmt.Errorf("expires_in must be positive, got %d", r.ExpiresIn)
	}
	return nil
}

// STKPushRequest asks the gateway to prompt a customer's handset for payment
type STKPushRequest struct {
	BusinessShortCode string      `json:"BusinessShortCode"`
	Password          string      `json:"Password"`
	Timestamp         string      `json:"Timestamp"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber"`
	CallBackURL       string      `json:"CallBackURL"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous acknowledgement of a push request
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

func (r *STKPushResponse) Validate() error {
	if r.ResponseCode == "" {
		return errors.New("ResponseCode is missing")
	}
	if r.ResponseCode != ResponseCodeAccepted {
		return nil
	}
	if r.CheckoutRequestID == "" {
		return errors.New("CheckoutRequestID is missing from an accepted push")
	}
	if r.MerchantRequestID == "" {
		return errors.New("MerchantRequestID is missing from an accepted push")
	}
	return nil
}

// Accepted reports whether the gateway took the push for processing.
func (r *STKPushResponse) Accepted() bool {
	return r.ResponseCode == ResponseCodeAccepted
}

// STKQueryRequest asks for the current status of a push
type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is the status of a push as reported by the query endpoint
type STKQueryResponse struct {
	ResultCode          *FlexInt `json:"ResultCode"`
	ResponseCode        string   `json:"ResponseCode"`
	ResponseDescription string   `json:"ResponseDescription"`
	MerchantRequestID   string   `json:"MerchantRequestID"`
	CheckoutRequestID   string   `json:"CheckoutRequestID"`
	ResultDesc          string   `json:"ResultDesc"`
}

func (r *STKQueryResponse) Validate() error {
	if r.ResultCode == nil {
		return errors.New("ResultCode is missing")
	}
	return nil
}

// StillProcessing reports whether the customer has not yet completed the prompt.
func (r *STKQueryResponse) StillProcessing() bool {
	return r.ResultCode != nil && int(*r.ResultCode) == ResultCodeStillProcessing
}

// B2CRequest pays out from the business shortcode to a customer
type B2CRequest struct {
	OriginatorConversationID string      `json:"OriginatorConversationID"`
	InitiatorName            string      `json:"InitiatorName"`
	SecurityCredential       string      `json:"SecurityCredential"`
	CommandID                string      `json:"CommandID"`
	Amount                   json.Number `json:"Amount"`
	PartyA                   string      `json:"PartyA"`
	PartyB                   string      `json:"PartyB"`
	Remarks                  string      `json:"Remarks"`
	QueueTimeOutURL          string      `json:"QueueTimeOutURL"`
	ResultURL                string      `json:"ResultURL"`
	Occasion                 string      `json:"Occasion,omitempty"`
}

// B2CResponse is the synchronous acknowledgement of a disbursement request
type B2CResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

func (r *B2CResponse) Validate() error {
	if r.ResponseCode == "" {
		return errors.New("ResponseCode is missing")
	}
	if r.ResponseCode == ResponseCodeAccepted && r.ConversationID == "" {
		return errors.New("ConversationID is missing from an accepted disbursement")
	}
	return nil
}

// Accepted reports whether the gateway took the disbursement for processing.
func (r *B2CResponse) Accepted() bool {
	return r.ResponseCode == ResponseCodeAccepted
}

// errorBody is the shape of gateway error answers
type errorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// STKCallbackEnvelope is the body posted to the push callback URL
type STKCallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the asynchronous result of a push
type STKCallback struct {
	ResultCode        *FlexInt          `json:"ResultCode"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultDesc        string            `json:"ResultDesc"`
}

// CallbackMetadata carries the name/value items of a successful push
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is one named value; values arrive as numbers or strings
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// DecodeSTKCallback parses a push callback and checks its structural fields.
func DecodeSTKCallback(raw []byte) (*STKCallback, error) {
	var env STKCallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	cb := env.Body.STKCallback
	if cb == nil {
		return nil, errors.New("Body.stkCallback is missing")
	}
	if cb.CheckoutRequestID == "" {
		return nil, errors.New("CheckoutRequestID is missing")
	}
	if cb.ResultCode == nil {
		return nil, errors.New("ResultCode is missing")
	}
	return cb, nil
}

// B2CResultEnvelope is the body posted to the disbursement result and timeout URLs
type B2CResultEnvelope struct {
	Result *B2CResult `json:"Result"`
}

// B2CResult is the asynchronous result of a disbursement
type B2CResult struct {
	ResultCode               *FlexInt          `json:"ResultCode"`
	ResultParameters         *ResultParameters `json:"ResultParameters"`
	ResultType               FlexInt           `json:"ResultType"`
	ResultDesc               string            `json:"ResultDesc"`
	OriginatorConversationID string            `json:"OriginatorConversationID"`
	ConversationID           string            `json:"ConversationID"`
	TransactionID            string            `json:"TransactionID"`
}

// ResultParameters holds the key/value items of a disbursement result.
// The gateway sends a single parameter as an object rather than a one-element array.
type ResultParameters struct {
	ResultParameter []ResultParameter `json:"ResultParameter"`
}

func (p *ResultParameters) UnmarshalJSON(data []byte) error {
	var probe struct {
		ResultParameter json.RawMessage `json:"ResultParameter"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(probe.ResultParameter)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		p.ResultParameter = nil
		return nil
	}
	if trimmed[0] == '{' {
		var single ResultParameter
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		p.ResultParameter = []ResultParameter{single}
		return nil
	}
	return json.Unmarshal(trimmed, &p.ResultParameter)
}

// ResultParameter is one key/value item of a disbursement result
type ResultParameter struct {
	Key   string          `json:"Key"`
	Value json.RawMessage `json:"Value"`
}

// DecodeB2CResult parses a disbursement result or timeout callback.
// Timeout bodies carry no ResultCode; requireCode is false for them.
func DecodeB2CResult(raw []byte, requireCode bool) (*B2CResult, error) {
	var env B2CResultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	res := env.Result
	if res == nil {
		return nil, errors.New("Result is missing")
	}
	if res.ConversationID == "" && res.OriginatorConversationID == "" {
		return nil, errors.New("ConversationID and OriginatorConversationID are both missing")
	}
	if requireCode && res.ResultCode == nil {
		return nil, errors.New("ResultCode is missing")
	}
	return res, nil
}

// Lookup returns the value of the named metadata item.
func (m *CallbackMetadata) Lookup(name string) (json.RawMessage, bool) {
	if m == nil {
		return nil, false
	}
	for _, item := range m.Item {
		if item.Name == name && len(item.Value) > 0 {
			return item.Value, true
		}
	}
	return nil, false
}

// Lookup returns the value of the named result parameter.
func (p *ResultParameters) Lookup(key string) (json.RawMessage, bool) {
	if p == nil {
		return nil, false
	}
	for _, param := range p.ResultParameter {
		if param.Key == key && len(param.Value) > 0 {
			return param.Value, true
		}
	}
	return nil, false
}

// ScalarString renders a raw JSON scalar (number or string) as text.
func ScalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", errors.New("value is null")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("value is not a scalar: %w", err)
	}
	return n.String(), nil
}
