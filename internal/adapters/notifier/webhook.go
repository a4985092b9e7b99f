package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/allumi/attribution-api/internal/core/domain"
)

const maxAttempts = 3

// WebhookNotifier posts recorded conversions to a configured endpoint,
// signing the body with HMAC-SHA256 when a secret is set. Delivery is best
// effort: failures are retried with jittered backoff, then logged and
// swallowed. An empty URL disables dispatch.
type WebhookNotifier struct {
	URL    string
	Secret string
	Client *http.Client
}

func NewWebhookNotifier(url, secret string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Secret: secret, Client: &http.Client{Timeout: timeout}}
}

type conversionEvent struct {
	Type        string                           `json:"type"`
	Data        domain.Conversion                `json:"data"`
	Attribution map[string]domain.CampaignCredit `json:"attribution,omitempty"`
}

func (n *WebhookNotifier) NotifyConversion(ctx context.Context, conversion domain.Conversion) {
	if n.URL == "" {
		return
	}

	body, err := json.Marshal(conversionEvent{
		Type:        "conversion",
		Data:        conversion,
		Attribution: conversion.AttributionData,
	})
	if err != nil {
		log.Printf("webhook: failed to encode conversion %s: %v", conversion.ID, err)
		return
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
		if err != nil {
			log.Printf("webhook: failed to build request for conversion %s: %v", conversion.ID, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if n.Secret != "" {
			mac := hmac.New(sha256.New, []byte(n.Secret))
			mac.Write(body)
			req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
		}

		resp, err := n.Client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body.Close()
			return
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New(resp.Status)
			resp.Body.Close()
		}

		sleep := time.Duration((1<<i)*100) * time.Millisecond
		sleep += time.Duration(rand.Intn(150)) * time.Millisecond
		time.Sleep(sleep)
	}
	log.Printf("webhook: failed to deliver conversion %s: %v", conversion.ID, lastErr)
}
