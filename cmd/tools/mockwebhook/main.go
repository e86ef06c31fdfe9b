// mockwebhook signs and sends synthetic provider callbacks against a local
// server, so the two-phase flow can be exercised without real providers.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"tolovpay.uz/app/internal/modules/webhooks"
)

func main() {
	provider := flag.String("provider", "click", "Provider: click, oson, card")
	base := flag.String("base", "http://localhost:8080", "Server base URL")
	secret := flag.String("secret", os.Getenv("MOCK_WEBHOOK_SECRET"), "Provider secret key")
	intentID := flag.String("intent", "", "Intent id (merchant trans id)")
	prepareID := flag.String("prepare-id", "", "Prepare id for complete (defaults to intent id)")
	transID := flag.String("trans-id", strconv.FormatInt(time.Now().Unix(), 10), "Provider transaction id")
	amount := flag.Int64("amount", 5000000, "Amount in tiyin")
	action := flag.String("action", "prepare", "prepare, complete or fail")
	serviceID := flag.Int64("service-id", 1, "Click service id")
	dryRun := flag.Bool("dry-run", false, "Print the signed request, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Error: secret not provided and MOCK_WEBHOOK_SECRET not set")
		os.Exit(1)
	}
	if *intentID == "" {
		fmt.Fprintln(os.Stderr, "Error: -intent is required")
		os.Exit(1)
	}
	if *prepareID == "" {
		*prepareID = *intentID
	}

	var err error
	switch *provider {
	case "click":
		err = sendClick(*base, *secret, *intentID, *prepareID, *transID, *amount, *action, *serviceID, *dryRun)
	case "oson":
		err = sendOson(*base, *secret, *intentID, *transID, *amount, *action, *dryRun)
	case "card":
		err = sendCard(*base, *secret, *intentID, *transID, *amount, *action, *dryRun)
	default:
		err = fmt.Errorf("unknown provider %q", *provider)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func sendClick(base, secret, intentID, prepareID, transID string, amount int64, action string, serviceID int64, dryRun bool) error {
	clickTransID, err := strconv.ParseInt(transID, 10, 64)
	if err != nil {
		return fmt.Errorf("click trans id must be numeric: %w", err)
	}

	req := webhooks.ClickRequest{
		ClickTransID:    clickTransID,
		ServiceID:       serviceID,
		MerchantTransID: intentID,
		Amount:          fmt.Sprintf("%d.%02d", amount/100, amount%100),
		SignTime:        time.Now().Format("2006-01-02 15:04:05"),
	}
	switch action {
	case "prepare":
		req.Action = webhooks.ClickActionPrepare
	case "complete":
		req.Action = webhooks.ClickActionComplete
		req.MerchantPrepareID = prepareID
	case "fail":
		req.Action = webhooks.ClickActionComplete
		req.MerchantPrepareID = prepareID
		req.ErrorCode = -1
		req.ErrorNote = "payment failed"
	default:
		return fmt.Errorf("unknown click action %q", action)
	}
	req.SignString = webhooks.ClickSign(secret, req)

	form := url.Values{}
	form.Set("click_trans_id", strconv.FormatInt(req.ClickTransID, 10))
	form.Set("service_id", strconv.FormatInt(req.ServiceID, 10))
	form.Set("merchant_trans_id", req.MerchantTransID)
	if req.MerchantPrepareID != "" {
		form.Set("merchant_prepare_id", req.MerchantPrepareID)
	}
	form.Set("amount", req.Amount)
	form.Set("action", strconv.Itoa(req.Action))
	form.Set("error", strconv.Itoa(req.ErrorCode))
	form.Set("error_note", req.ErrorNote)
	form.Set("sign_time", req.SignTime)
	form.Set("sign_string", req.SignString)

	fmt.Printf("Form: %s\n", form.Encode())
	if dryRun {
		fmt.Println("[DRY RUN] Not sending request")
		return nil
	}
	return post(base+"/callbacks/click", "application/x-www-form-urlencoded", []byte(form.Encode()), nil)
}

func sendOson(base, secret, intentID, transID string, amount int64, action string, dryRun bool) error {
	switch action {
	case "prepare", "complete", "fail":
	default:
		return fmt.Errorf("unknown oson action %q", action)
	}

	req := webhooks.OsonRequest{
		TransactionID: transID,
		MerchantRef:   intentID,
		Amount:        amount,
		Action:        action,
		Timestamp:     time.Now().Unix(),
	}
	if action == "fail" {
		req.Reason = "payment failed"
	}
	req.Sign = webhooks.OsonSign(secret, req)

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	fmt.Printf("Body: %s\n", string(body))
	if dryRun {
		fmt.Println("[DRY RUN] Not sending request")
		return nil
	}
	return post(base+"/callbacks/oson", "application/json", body, nil)
}

func sendCard(base, secret, intentID, transID string, amount int64, action string, dryRun bool) error {
	ev := webhooks.CardEvent{
		OrderRef:    transID,
		MerchantRef: intentID,
		AmountTiyin: amount,
	}
	switch action {
	case "complete":
		ev.Type = webhooks.CardEventSucceeded
	case "fail":
		ev.Type = webhooks.CardEventFailed
		ev.Reason = "declined by issuer"
	default:
		return fmt.Errorf("card supports complete or fail, got %q", action)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ts := time.Now().Unix()
	sig := fmt.Sprintf("t=%d,v1=%s", ts, webhooks.CardSign(secret, ts, body))

	fmt.Printf("X-Gate-Signature: %s\n", sig)
	fmt.Printf("Body: %s\n", string(body))
	if dryRun {
		fmt.Println("[DRY RUN] Not sending request")
		return nil
	}
	return post(base+"/callbacks/card", "application/json", body, map[string]string{"X-Gate-Signature": sig})
}

func post(url, contentType string, body []byte, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))
	return nil
}
