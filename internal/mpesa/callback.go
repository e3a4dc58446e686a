package mpesa

const receiptItemName = "MpesaReceiptNumber"

// CallbackEnvelope is the body the gateway posts to the callback URL. The
// actual result sits nested under Body.stkCallback.
type CallbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ReceiptNumber extracts the M-Pesa receipt from the metadata item list.
// Returns "" when the item is absent, which the success path tolerates.
func (c *StkCallback) ReceiptNumber() string {
	if c.CallbackMetadata == nil {
		return ""
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name != receiptItemName {
			continue
		}
		if receipt, ok := item.Value.(string); ok {
			return receipt
		}
	}
	return ""
}

// Ack is the fixed synchronous acknowledgment the gateway expects,
// independent of the business outcome.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func Accepted() Ack {
	return Ack{ResultCode: 0, ResultDesc: "Accepted"}
}
