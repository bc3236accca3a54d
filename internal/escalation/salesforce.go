package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

type SalesforceConfig struct {
	TokenURL        string
	ClientID        string
	ClientSecret    string
	Username        string
	Password        string
	APIVersion      string
	Timeout         time.Duration
	TokenTTL        time.Duration
	CaseOrigin      string
	DefaultPriority string
}

type SalesforceClient struct {
	cfg        SalesforceConfig
	oauth      *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

type caseCreateResponse struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Errors  []interface{} `json:"errors"`
}

func NewSalesforceClient(cfg SalesforceConfig) *SalesforceClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v58.0"
	}
	if cfg.CaseOrigin == "" {
		cfg.CaseOrigin = "Chatbot"
	}
	if cfg.DefaultPriority == "" {
		cfg.DefaultPriority = "Medium"
	}

	return &SalesforceClient{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

func (c *SalesforceClient) Authenticate(ctx context.Context) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.PasswordCredentialsToken(ctx, c.cfg.Username, c.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("salesforce auth: %w", err)
	}

	instanceURL, _ := tok.Extra("instance_url").(string)
	if instanceURL == "" {
		return nil, errors.New("salesforce auth: token response has no instance_url")
	}

	// Salesforce omits expires_in; session lifetime is an org setting.
	expiresAt := c.now().Add(c.cfg.TokenTTL)
	if !tok.Expiry.IsZero() && tok.Expiry.Before(expiresAt) {
		expiresAt = tok.Expiry
	}

	logger.Debug("Salesforce token issued", zap.String("instance_url", instanceURL))

	return &Token{
		AccessToken: tok.AccessToken,
		InstanceURL: strings.TrimRight(instanceURL, "/"),
		ExpiresAt:   expiresAt,
	}, nil
}

func (c *SalesforceClient) CreateCase(ctx context.Context, token *Token, req CaseRequest) (string, error) {
	payload := map[string]string{
		"Subject":         req.Subject(),
		"Description":     req.Description(),
		"Origin":          c.cfg.CaseOrigin,
		"Priority":        c.cfg.DefaultPriority,
		"Status":          "New",
		"SuppliedName":    req.Identity.Name,
		"SuppliedEmail":   req.Identity.Email,
		"SuppliedCompany": req.Identity.Organization,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal case: %w", err)
	}

	url := fmt.Sprintf("%s/services/data/%s/sobjects/Case", token.InstanceURL, c.cfg.APIVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build case request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("case request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read case response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("case create returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var result caseCreateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse case response: %w", err)
	}
	if !result.Success || result.ID == "" {
		return "", fmt.Errorf("case create rejected: %v", result.Errors)
	}

	return result.ID, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}
