package wufoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/tidwall/gjson"

	"github.com/donmikel/formproxy/applications/server/config"
	"github.com/donmikel/formproxy/applications/server/domain"
	"github.com/donmikel/formproxy/applications/server/interfaces"
	"github.com/donmikel/formproxy/applications/server/transform"
)

const (
	// apiPassword is the fixed password half of the vendor's Basic auth.
	apiPassword = "foostatic"

	defaultMaxRedirects = 10
	maxResponseBytes    = 16 << 20 // 16 MiB
)

type client struct {
	domain       string
	apiKey       string
	httpClient   *http.Client
	transport    http.RoundTripper
	maxRedirects int
	logger       log.Logger
}

type Option func(*client)

// WithTransport replaces the HTTP transport, keeping the redirect policy and timeout.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *client) {
		c.transport = rt
	}
}

func WithMaxRedirects(n int) Option {
	return func(c *client) {
		c.maxRedirects = n
	}
}

func NewClient(conf config.Vendor, logger log.Logger, opts ...Option) interfaces.FormVendor {
	c := &client{
		domain:       conf.APIDomain,
		apiKey:       conf.APIKey,
		transport:    http.DefaultTransport,
		maxRedirects: defaultMaxRedirects,
		logger:       logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   conf.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", c.maxRedirects)
			}
			return nil
		},
	}

	return c
}

func (c *client) Configured() bool {
	return c.domain != ""
}

func (c *client) FormHTML(ctx context.Context, formHash string) (string, error) {
	const op = "fetch form html"
	if !c.Configured() {
		return "", domain.NewError(domain.ConfigMissing, op, errors.New("vendor domain not configured"))
	}

	formURL := fmt.Sprintf("https://%s/forms/%s/", c.domain, url.PathEscape(formHash))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formURL, nil)
	if err != nil {
		return "", domain.NewError(domain.UpstreamRequestFailed, op, err)
	}

	body, err := c.do(op, req)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

func (c *client) Forms(ctx context.Context) (json.RawMessage, error) {
	const op = "list forms"
	if !c.Configured() {
		return nil, domain.NewError(domain.ConfigMissing, op, errors.New("vendor domain not configured"))
	}

	formsURL := fmt.Sprintf("https://%s/api/v3/forms.json", c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formsURL, nil)
	if err != nil {
		return nil, domain.NewError(domain.UpstreamRequestFailed, op, err)
	}
	req.SetBasicAuth(c.apiKey, apiPassword)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, domain.NewError(domain.UpstreamRequestFailed, op, errors.New("response is not valid json"))
	}

	level.Debug(c.logger).Log("msg", "forms listed",
		"count", gjson.GetBytes(body, "Forms.#").Int(),
	)

	return json.RawMessage(body), nil
}

func (c *client) Submit(ctx context.Context, submissionURL string, parts []domain.MultipartPart) (string, error) {
	const op = "submit form"

	target, err := url.Parse(submissionURL)
	if err != nil {
		return "", domain.NewError(domain.UpstreamRequestFailed, op, fmt.Errorf("parse submission url: %w", err))
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", domain.NewError(domain.UpstreamRequestFailed, op, fmt.Errorf("submission url %q is not an http url", submissionURL))
	}

	body, contentType, err := transform.WriteMultipart(parts)
	if err != nil {
		return "", domain.NewError(domain.UpstreamRequestFailed, op, fmt.Errorf("build multipart body: %w", err))
	}

	level.Info(c.logger).Log("msg", "submitting form",
		"url", target.Redacted(),
		"parts", len(parts),
		"size", humanize.Bytes(uint64(body.Len())),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return "", domain.NewError(domain.UpstreamRequestFailed, op, err)
	}
	req.Header.Set("Content-Type", contentType)

	respBody, err := c.do(op, req)
	if err != nil {
		return "", err
	}

	return string(respBody), nil
}

func (c *client) do(op string, req *http.Request) ([]byte, error) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.UpstreamRequestFailed, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, domain.NewError(domain.UpstreamRequestFailed, op, fmt.Errorf("read response body: %w", err))
	}
	if len(body) > maxResponseBytes {
		return nil, domain.NewError(domain.UpstreamRequestFailed, op,
			fmt.Errorf("response body exceeds %s", humanize.IBytes(maxResponseBytes)))
	}

	level.Info(c.logger).Log("msg", "vendor response",
		"op", op,
		"url", resp.Request.URL.Redacted(),
		"status", resp.StatusCode,
		"size", humanize.Bytes(uint64(len(body))),
		"took", time.Since(start),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, domain.NewError(domain.UpstreamRequestFailed, op, fmt.Errorf("unexpected status: %s", resp.Status))
	}

	return body, nil
}
