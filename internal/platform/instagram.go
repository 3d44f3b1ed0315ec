package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const instagramGraphBase = "https://graph.instagram.com/v21.0"

type instagramAdapter struct {
	client *http.Client
}

// NewInstagramAdapter publishes a single image through the two-step
// container flow: create a media container, then publish it.
func NewInstagramAdapter(client *http.Client) Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &instagramAdapter{client: client}
}

func (a *instagramAdapter) Name() string { return Instagram }

func (a *instagramAdapter) Publish(ctx context.Context, req Request) Outcome {
	if req.MediaURL == "" {
		return failed(Instagram, ErrContentRejected, "instagram posts require an image")
	}

	containerID, out := a.createContainer(ctx, req)
	if out != nil {
		return *out
	}

	publishURL := fmt.Sprintf("%s/%s/media_publish", instagramGraphBase, req.AccountRef)
	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": req.AccessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if out := a.post(ctx, publishURL, payload, &result); out != nil {
		return *out
	}

	return succeeded(Instagram, result.ID)
}

func (a *instagramAdapter) createContainer(ctx context.Context, req Request) (string, *Outcome) {
	mediaURL := fmt.Sprintf("%s/%s/media", instagramGraphBase, req.AccountRef)
	payload := map[string]string{
		"image_url":    req.MediaURL,
		"caption":      req.Text,
		"access_token": req.AccessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if out := a.post(ctx, mediaURL, payload, &result); out != nil {
		return "", out
	}
	if result.ID == "" {
		out := failed(Instagram, ErrUnknown, "media container response had no id")
		return "", &out
	}
	return result.ID, nil
}

func (a *instagramAdapter) post(ctx context.Context, url string, payload map[string]string, result interface{}) *Outcome {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		out := failed(Instagram, ErrUnknown, err.Error())
		return &out
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		out := failed(Instagram, ErrUnknown, err.Error())
		return &out
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		out := failed(Instagram, KindFromError(err), err.Error())
		return &out
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr graphError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			out := failed(Instagram, KindFromStatus(resp.StatusCode), fmt.Sprintf("instagram returned status %d", resp.StatusCode))
			return &out
		}
		out := failed(Instagram, classifyGraphError(resp.StatusCode, apiErr), graphMessage(resp.StatusCode, apiErr))
		return &out
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		out := failed(Instagram, ErrUnknown, err.Error())
		return &out
	}
	return nil
}
