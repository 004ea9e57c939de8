// Command stripe-webhook-sim posts a signed fake Stripe event to a local
// instance, for exercising the webhook path without a Stripe account.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "service base url")
		evtType = flag.String("type", getenv("STRIPE_EVENT_TYPE", "payment_intent.succeeded"), "stripe event type")
		intent  = flag.String("intent-id", getenv("PAYMENT_INTENT_ID", ""), "payment intent id")
		secret  = flag.String("secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*intent) == "" {
		fatal("PAYMENT_INTENT_ID is required")
	}

	now := time.Now().UTC()
	eventID := fmt.Sprintf("evt_test_%d", now.UnixNano())

	payload, err := buildEventJSON(eventID, *evtType, now, *intent)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/payments/webhook", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	fmt.Printf("status=%d\n", resp.StatusCode)
}

func buildEventJSON(eventID, eventType string, t time.Time, intentID string) ([]byte, error) {
	switch eventType {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		return json.Marshal(map[string]any{
			"id":          eventID,
			"object":      "event",
			"created":     t.Unix(),
			"type":        eventType,
			"api_version": "2020-08-27",
			"data": map[string]any{
				"object": map[string]any{
					"id":     intentID,
					"object": "payment_intent",
					"status": strings.TrimPrefix(eventType, "payment_intent."),
				},
			},
		})
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
