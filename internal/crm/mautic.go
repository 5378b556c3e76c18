// Package crm forwards qualified contacts to the marketing CRM.
package crm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "Mozilla/5.0 (compatible; Viva-Academy-Bot/1.0)"
)

// ErrMissingFields is returned when nome, email or telefone is empty.
var ErrMissingFields = errors.New("crm: nome, email and telefone are required")

// StatusError reports a non-200 answer from the form endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm: form submit status %d", e.Status)
}

// MauticConfig configures a Mautic form client.
type MauticConfig struct {
	URL      string
	FormID   int
	FormName string
	Timeout  time.Duration
}

// Mautic submits contacts through a public Mautic form.
type Mautic struct {
	endpoint   string
	formID     string
	formName   string
	httpClient *http.Client
}

// NewMautic returns a form client posting to {URL}/form/submit?formId=N.
func NewMautic(cfg MauticConfig) *Mautic {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	id := strconv.Itoa(cfg.FormID)
	return &Mautic{
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/form/submit?formId=" + url.QueryEscape(id),
		formID:     id,
		formName:   cfg.FormName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SubmitLead posts the contact triple. Mautic answers with an HTML page;
// status 200 means the submission was accepted.
func (m *Mautic) SubmitLead(ctx context.Context, name, email, phone string) error {
	name, email, phone = strings.TrimSpace(name), strings.TrimSpace(email), strings.TrimSpace(phone)
	if name == "" || email == "" || phone == "" {
		return ErrMissingFields
	}

	form := url.Values{}
	form.Set("mauticform[nome]", name)
	form.Set("mauticform[email]", email)
	form.Set("mauticform[telefone]", phone)
	form.Set("mauticform[formId]", m.formID)
	form.Set("mauticform[formName]", m.formName)
	form.Set("mauticform[submit]", "1")
	form.Set("mauticform[return]", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: submit form: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	if looksLikeFormError(string(body)) {
		log.Warn().Str("form_id", m.formID).Msg("crm response page mentions an error")
	}
	return nil
}

// looksLikeFormError spots validation messages in the returned page. The
// submission still counts as accepted.
func looksLikeFormError(body string) bool {
	for _, s := range []string{"error", "Error", "campo obrigatório", "required"} {
		if strings.Contains(body, s) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
