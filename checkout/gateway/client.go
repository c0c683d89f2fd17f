package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the payment gateway's REST API. Tokenization uses the
// public key, everything else the secret key.
type Client struct {
	BaseURL    string
	SecretKey  string
	PublicKey  string
	HTTPClient *http.Client
}

func NewClient(baseURL, secretKey, publicKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SecretKey:  secretKey,
		PublicKey:  publicKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is the gateway's error payload, surfaced verbatim to callers.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

type Token struct {
	ID string `json:"id"`
}

type Charge struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	Paid           bool    `json:"paid"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	FailureMessage string  `json:"failure_message"`
	Source         *Source `json:"source,omitempty"`
}

type Source struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	ChargeStatus  string         `json:"charge_status"`
	ScannableCode *ScannableCode `json:"scannable_code,omitempty"`
}

type ScannableCode struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
	Image   struct {
		DownloadURI string `json:"download_uri"`
	} `json:"image"`
}

// CreateToken exchanges raw card details for a one-time token.
func (c *Client) CreateToken(card Card) (*Token, error) {
	year, err := NormalizeExpYear(card.ExpirationYear)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("card[name]", card.Name)
	form.Set("card[number]", card.Number)
	form.Set("card[expiration_month]", strconv.Itoa(card.ExpirationMonth))
	form.Set("card[expiration_year]", strconv.Itoa(year))
	form.Set("card[security_code]", card.SecurityCode)

	var token Token
	if err := c.post(c.BaseURL+"/tokens", c.PublicKey, form, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// CreateCharge charges a tokenized card. The order id travels in the charge
// metadata so settlement can be tied back to the order.
func (c *Client) CreateCharge(tokenID, orderID string, amount int64, currency string) (*Charge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("card", tokenID)
	form.Set("metadata[order_id]", orderID)

	var charge Charge
	if err := c.post(c.BaseURL+"/charges", c.SecretKey, form, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// CreateSource creates an asynchronous payment source (promptpay QR).
func (c *Client) CreateSource(amount int64, currency, sourceType string) (*Source, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("type", sourceType)

	var source Source
	if err := c.post(c.BaseURL+"/sources", c.PublicKey, form, &source); err != nil {
		return nil, err
	}
	return &source, nil
}

// CreateSourceCharge attaches a source to a new charge. The charge settles
// out of band, once the customer scans the code.
func (c *Client) CreateSourceCharge(sourceID, orderID string, amount int64, currency string) (*Charge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("source", sourceID)
	form.Set("metadata[order_id]", orderID)

	var charge Charge
	if err := c.post(c.BaseURL+"/charges", c.SecretKey, form, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// GetCharge fetches the current state of a charge.
func (c *Client) GetCharge(chargeID string) (*Charge, error) {
	req, err := http.NewRequest("GET", c.BaseURL+"/charges/"+chargeID, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.SecretKey, "")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var charge Charge
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, fmt.Errorf("failed to parse charge: %w", err)
	}
	return &charge, nil
}

func (c *Client) post(endpoint, key string, form url.Values, out interface{}) error {
	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(key, "")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse gateway response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = "gateway returned status " + resp.Status
	}
	return apiErr
}
