package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	gmailScope   = "https://www.googleapis.com/auth/gmail.send"
	gmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
)

// GmailMailer sends through the Gmail REST API. SecretFile is the OAuth
// client secret JSON; TokenFile holds a previously granted refresh token
// (obtaining the initial grant is an out-of-band, interactive step).
type GmailMailer struct {
	SecretFile string
	TokenFile  string
}

func (g *GmailMailer) Send(ctx context.Context, msg *Message) error {
	out, err := msg.build()
	if err != nil {
		return err
	}
	var raw bytes.Buffer
	if _, err := out.WriteTo(&raw); err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	client, err := g.client(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(raw.Bytes()),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gmailSendURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gmail send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gmail API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

func (g *GmailMailer) client(ctx context.Context) (*http.Client, error) {
	secret, err := os.ReadFile(g.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading gmail client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(secret, gmailScope)
	if err != nil {
		return nil, fmt.Errorf("parsing gmail client secret: %w", err)
	}

	tokenData, err := os.ReadFile(g.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading gmail token (run the grant flow first): %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("parsing gmail token: %w", err)
	}
	return cfg.Client(ctx, &token), nil
}
