package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const whatsappPrefix = "whatsapp:"

// InboundMessage is an incoming WhatsApp message as delivered by Twilio.
type InboundMessage struct {
	MessageSID  string
	AccountSID  string
	From        string // bare E.164, whatsapp: prefix stripped
	To          string
	Body        string
	ProfileName string
}

// ParseWebhook reads the Twilio form payload of an inbound message.
func ParseWebhook(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: parse webhook form: %w", err)
	}
	msg := &InboundMessage{
		MessageSID:  r.FormValue("MessageSid"),
		AccountSID:  r.FormValue("AccountSid"),
		From:        StripWhatsApp(r.FormValue("From")),
		To:          StripWhatsApp(r.FormValue("To")),
		Body:        strings.TrimSpace(r.FormValue("Body")),
		ProfileName: r.FormValue("ProfileName"),
	}
	if msg.From == "" {
		return nil, fmt.Errorf("messaging: webhook missing From")
	}
	return msg, nil
}

// StripWhatsApp removes the whatsapp: channel prefix from a Twilio address.
func StripWhatsApp(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), whatsappPrefix)
}

// EnsureWhatsApp prefixes a bare E.164 number with the whatsapp: channel.
func EnsureWhatsApp(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

// ValidateTwilioSignature checks X-Twilio-Signature against the auth token.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with the sorted form params, the
// scheme Twilio signs.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// RequestURL reconstructs the absolute URL Twilio signed, trusting the
// forwarding headers set by the reverse proxy.
func RequestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
