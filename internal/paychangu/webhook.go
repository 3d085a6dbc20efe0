package paychangu

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "Signature"

// StatusSuccess is the only provider status treated as a completed payment.
const StatusSuccess = "success"

// Event is the part of a provider callback the ledgers act on.
type Event struct {
	TxRef   string
	Status  string
	TransID string
}

// Succeeded reports whether the provider confirmed the payment.
func (e Event) Succeeded() bool {
	return strings.EqualFold(e.Status, StatusSuccess)
}

// ParseEvent extracts {data:{tx_ref,status}} from a callback body. A body that
// is not JSON yields an empty Event.
func ParseEvent(body []byte) Event {
	var payload struct {
		Data struct {
			TxRef     string `json:"tx_ref"`
			Status    string `json:"status"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}
	}
	return Event{
		TxRef:   strings.TrimSpace(payload.Data.TxRef),
		Status:  strings.TrimSpace(payload.Data.Status),
		TransID: strings.TrimSpace(payload.Data.Reference),
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against body. An empty secret disables the
// check and every body verifies.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return true
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	expected, err := hex.DecodeString(Sign(body, secret))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(header))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
