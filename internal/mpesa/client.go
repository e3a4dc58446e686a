package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	tokenPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	timestampLayout = "20060102150405"
)

var ErrNoToken = errors.New("gateway returned no access token")

// ErrPushRejected means the gateway answered the STK push request with a
// non-zero response code, i.e. no payment prompt reached the phone.
type ErrPushRejected struct {
	Code        string
	Description string
}

func (e *ErrPushRejected) Error() string {
	return fmt.Sprintf("STK push rejected, code %s: %s", e.Code, e.Description)
}

// Client talks to the Daraja API: it fetches an OAuth token per request and
// fires Lipa na M-Pesa Online (STK push) charges.
type Client struct {
	http      *resty.Client
	key       string
	secret    string
	shortcode string
	passkey   string
}

func NewClient(baseURL string, key string, secret string, shortcode string, passkey string) *Client {
	return &Client{
		http:      resty.New().SetBaseURL(baseURL),
		key:       key,
		secret:    secret,
		shortcode: shortcode,
		passkey:   passkey,
	}
}

type PushRequest struct {
	Phone            string
	Amount           int
	AccountReference string
	CallbackURL      string
	Description      string
}

type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {

	var token struct {
		AccessToken string `json:"access_token"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.key, c.secret).
		SetResult(&token).
		Get(tokenPath)
	if err != nil {
		return "", fmt.Errorf("token request failed %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode())
	}
	if token.AccessToken == "" {
		return "", ErrNoToken
	}
	return token.AccessToken, nil
}

// STKPush asks the gateway to prompt the payer's phone. Acceptance here only
// means the prompt was queued; the business outcome arrives later on the
// callback URL.
func (c *Client) STKPush(ctx context.Context, push PushRequest) (*PushResponse, error) {

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString([]byte(c.shortcode + c.passkey + timestamp))

	payload := stkPushPayload{
		BusinessShortCode: c.shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            push.Amount,
		PartyA:            push.Phone,
		PartyB:            c.shortcode,
		PhoneNumber:       push.Phone,
		CallBackURL:       push.CallbackURL,
		AccountReference:  push.AccountReference,
		TransactionDesc:   push.Description,
	}

	var result PushResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		SetResult(&result).
		Post(stkPushPath)
	if err != nil {
		return nil, fmt.Errorf("STK push request failed %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("STK push returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.ResponseCode != "0" {
		return nil, fmt.Errorf("%w", &ErrPushRejected{Code: result.ResponseCode, Description: result.ResponseDescription})
	}
	return &result, nil
}
