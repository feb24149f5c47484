package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"tgmed/internal/providers"
	"tgmed/internal/structures"
	"time"

	json "github.com/goccy/go-json"
)

type Interface interface {
	ForwardFile(ctx context.Context, upload FileUpload) Delivery
	Notify(ctx context.Context, event string, payload map[string]any) Delivery
}

// Client posts to the configured analysis webhook. Both calls carry their
// own timeout on top of the caller's context.
type Client struct {
	url           string
	secret        string
	fileTimeout   time.Duration
	notifyTimeout time.Duration
	httpClient    *http.Client
	logger        providers.Logger
	metrics       providers.MetricsProviderInterface
}

func NewClient(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) Interface {
	return newClient(conf, &http.Client{}, logger, metrics)
}

func newClient(conf *structures.Config, httpClient *http.Client, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	fileTimeout := conf.Webhook.FileTimeout
	if fileTimeout <= 0 {
		fileTimeout = 30 * time.Second
	}
	notifyTimeout := conf.Webhook.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &Client{
		url:           conf.Webhook.URL,
		secret:        conf.Webhook.Secret,
		fileTimeout:   fileTimeout,
		notifyTimeout: notifyTimeout,
		httpClient:    httpClient,
		logger:        logger,
		metrics:       metrics,
	}
}

func (c *Client) ForwardFile(ctx context.Context, upload FileUpload) Delivery {
	if c.url == "" {
		return c.finish(KindFile, Delivery{Status: StatusSkipped, Error: "webhook url is not configured"})
	}

	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return c.finish(KindFile, Delivery{Status: StatusFailed, Error: fmt.Sprintf("failed to encode upload: %s", err)})
	}

	ctx, cancel := context.WithTimeout(ctx, c.fileTimeout)
	defer cancel()
	return c.finish(KindFile, c.post(ctx, body, contentType))
}

func (c *Client) Notify(ctx context.Context, event string, payload map[string]any) Delivery {
	if c.url == "" {
		return c.finish(KindNotify, Delivery{Status: StatusSkipped, Error: "webhook url is not configured"})
	}

	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["event"] = event

	data, err := json.Marshal(msg)
	if err != nil {
		return c.finish(KindNotify, Delivery{Status: StatusFailed, Error: fmt.Sprintf("failed to marshal request: %s", err)})
	}

	ctx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()
	return c.finish(KindNotify, c.post(ctx, bytes.NewReader(data), "application/json"))
}

func (c *Client) post(ctx context.Context, body io.Reader, contentType string) Delivery {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Delivery{Status: StatusFailed, Error: fmt.Sprintf("failed to create request: %s", err)}
	}
	req.Header.Set("Content-Type", contentType)
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Delivery{Status: StatusFailed, Error: fmt.Sprintf("failed to execute request: %s", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseText+1))
	d := Delivery{Code: resp.StatusCode, Response: decodeResponse(raw)}
	switch {
	case err != nil:
		d.Status = StatusFailed
		d.Error = fmt.Sprintf("failed to read response: %s", err)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		d.Status = StatusFailed
		d.Error = fmt.Sprintf("webhook returned status %d", resp.StatusCode)
	default:
		d.Status = StatusDelivered
	}
	return d
}

func (c *Client) finish(kind string, d Delivery) Delivery {
	c.metrics.IncWebhookDeliveries(kind, string(d.Status))
	switch {
	case d.Delivered():
		c.logger.Infof(providers.TypeWebhook, "%s delivered, status %d", kind, d.Code)
	case d.Status == StatusSkipped:
		c.logger.Debugf(providers.TypeWebhook, "%s delivery skipped: %s", kind, d.Error)
	default:
		c.logger.Warnf(providers.TypeWebhook, "%s delivery failed: %s", kind, d.Error)
	}
	return d
}

// decodeResponse keeps JSON bodies as values and anything else as text.
func decodeResponse(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	if len(raw) > maxResponseText {
		raw = raw[:maxResponseText]
	}
	return string(raw)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeUpload(upload FileUpload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"tgid", upload.TgID},
		{"fileName", upload.FileName},
		{"mime", upload.Mime},
		{"size", strconv.FormatInt(upload.Size, 10)},
		{"extractedText", upload.ExtractedText},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(upload.FileName)))
	mime := upload.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	h.Set("Content-Type", mime)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
