package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// Config holds Evolution API gateway configuration
type Config struct {
	URL      string
	APIKey   string
	Instance string
}

// evolutionClient implements Client against the Evolution WhatsApp API
type evolutionClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewEvolutionClient creates a gateway client for the Evolution API
func NewEvolutionClient(cfg Config, logger *slog.Logger) Client {
	return &evolutionClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // media uploads need headroom
		},
		logger: logger,
	}
}

type textPayload struct {
	Number      string `json:"number"`
	TextMessage struct {
		Text string `json:"text"`
	} `json:"textMessage"`
}

type mediaPayload struct {
	Number       string `json:"number"`
	MediaMessage struct {
		MediaType string `json:"mediatype"`
		Media     string `json:"media"`
		Caption   string `json:"caption,omitempty"`
	} `json:"mediaMessage"`
}

// sendResponse is the subset of the Evolution API response we care about
type sendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// Send delivers one message to one recipient. With media present the text
// rides as the caption of the first item and each item is posted in order;
// the first failed item fails the whole send with its reason.
func (c *evolutionClient) Send(ctx context.Context, phone, text string, media []models.MediaAttachment) Result {
	if phone == "" {
		return Result{Success: false, ErrorReason: "recipient phone is required"}
	}

	if len(media) == 0 {
		return c.sendText(ctx, phone, text)
	}

	var first Result
	for i, m := range media {
		caption := ""
		if i == 0 {
			caption = text
		}

		res := c.sendMedia(ctx, phone, m, caption)
		if !res.Success {
			return Result{Success: false, ErrorReason: res.ErrorReason}
		}
		if i == 0 {
			first = res
		}
	}

	return first
}

func (c *evolutionClient) sendText(ctx context.Context, phone, text string) Result {
	if text == "" {
		return Result{Success: false, ErrorReason: "message text is required"}
	}

	payload := textPayload{Number: phone}
	payload.TextMessage.Text = text

	url := fmt.Sprintf("%s/message/sendText/%s", c.cfg.URL, c.cfg.Instance)
	return c.post(ctx, url, payload)
}

func (c *evolutionClient) sendMedia(ctx context.Context, phone string, media models.MediaAttachment, caption string) Result {
	payload := mediaPayload{Number: phone}
	payload.MediaMessage.MediaType = media.Kind
	payload.MediaMessage.Media = media.URI
	payload.MediaMessage.Caption = caption

	url := fmt.Sprintf("%s/message/sendMedia/%s", c.cfg.URL, c.cfg.Instance)
	return c.post(ctx, url, payload)
}

func (c *evolutionClient) post(ctx context.Context, url string, payload interface{}) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Success: false, ErrorReason: fmt.Sprintf("failed to encode payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Success: false, ErrorReason: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Success: false, ErrorReason: fmt.Sprintf("gateway request failed: %v", err)}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusCreated {
		c.logger.Warn("gateway rejected send",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(data)),
		)
		return Result{
			Success:     false,
			ErrorReason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(data)),
		}
	}

	var parsed sendResponse
	_ = json.Unmarshal(data, &parsed)

	return Result{Success: true, ExternalMessageID: parsed.Key.ID}
}
