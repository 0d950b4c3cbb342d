package qr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
)

// maxPayloadBytes bounds the response body read from the QR service.
const maxPayloadBytes = 1 << 20

var ErrEmptyTarget = errors.New("qr target url is empty")

// Payload is a displayable QR image as returned by the external service.
type Payload struct {
	Bytes       []byte
	ContentType string
}

// DataURL renders the payload as an inline image source.
func (p Payload) DataURL() string {
	return "data:" + p.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Bytes)
}

// Client requests QR images from an external generation service.
type Client struct {
	endpoint string
	size     int
	httpc    *http.Client
}

func NewClient(endpoint string, size int, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	if size <= 0 {
		size = 300
	}
	return &Client{endpoint: endpoint, size: size, httpc: httpc}
}

// Generate fetches a QR image encoding the target URL. The content type is
// sniffed from the payload rather than trusted from the response header.
func (c *Client) Generate(ctx context.Context, target string) (Payload, error) {
	if target == "" {
		return Payload{}, ErrEmptyTarget
	}

	q := url.Values{}
	q.Set("data", target)
	q.Set("size", fmt.Sprintf("%dx%d", c.size, c.size))
	endpoint := c.endpoint + "?" + q.Encode()

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				log.Printf("[qr] http error: %v", err)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("qr service returned %s", resp.Status)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("qr service returned %s", resp.Status))
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
			if err != nil {
				return err
			}
			if len(body) == 0 {
				return retry.Unrecoverable(errors.New("qr service returned empty payload"))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Bytes:       body,
		ContentType: mimetype.Detect(body).String(),
	}, nil
}
