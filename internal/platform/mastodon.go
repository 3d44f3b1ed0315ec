package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

type mastodonAdapter struct {
	client *resty.Client
}

// NewMastodonAdapter publishes statuses against a per-account instance
// (Request.ServerBase), so the adapter itself is instance-agnostic.
func NewMastodonAdapter(client *resty.Client) Adapter {
	return &mastodonAdapter{client: client}
}

func (a *mastodonAdapter) Name() string { return Mastodon }

type mastodonStatus struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type mastodonError struct {
	Error string `json:"error"`
}

func (a *mastodonAdapter) Publish(ctx context.Context, req Request) Outcome {
	if req.ServerBase == "" {
		return failed(Mastodon, ErrAccountUnavailable, "account has no instance URL")
	}

	var mediaIDs []string
	if req.MediaURL != "" {
		mediaID, out := a.uploadMedia(ctx, req)
		if out != nil {
			return *out
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	body := map[string]interface{}{
		"status":     req.Text,
		"visibility": "public",
	}
	if len(mediaIDs) > 0 {
		body["media_ids"] = mediaIDs
	}

	var status mastodonStatus
	var apiErr mastodonError
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(req.AccessToken).
		SetBody(body).
		SetResult(&status).
		SetError(&apiErr).
		Post(req.ServerBase + "/api/v1/statuses")
	if err != nil {
		return failed(Mastodon, KindFromError(err), err.Error())
	}
	if resp.IsError() {
		return failed(Mastodon, KindFromStatus(resp.StatusCode()), mastodonMessage(resp.StatusCode(), apiErr))
	}

	return succeeded(Mastodon, status.ID)
}

// uploadMedia pulls the asset from object storage and re-uploads it to the
// instance; Mastodon does not fetch remote URLs itself.
func (a *mastodonAdapter) uploadMedia(ctx context.Context, req Request) (string, *Outcome) {
	img, err := a.client.R().SetContext(ctx).Get(req.MediaURL)
	if err != nil {
		out := failed(Mastodon, KindFromError(err), fmt.Sprintf("fetch media: %v", err))
		return "", &out
	}
	if img.IsError() {
		out := failed(Mastodon, ErrContentRejected, fmt.Sprintf("media asset returned status %d", img.StatusCode()))
		return "", &out
	}

	var media struct {
		ID string `json:"id"`
	}
	var apiErr mastodonError
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(req.AccessToken).
		SetFileReader("file", "media", bytes.NewReader(img.Body())).
		SetResult(&media).
		SetError(&apiErr).
		Post(req.ServerBase + "/api/v2/media")
	if err != nil {
		out := failed(Mastodon, KindFromError(err), err.Error())
		return "", &out
	}
	// 202 means the instance is still processing; the returned id is
	// already attachable.
	if resp.IsError() && resp.StatusCode() != http.StatusAccepted {
		out := failed(Mastodon, KindFromStatus(resp.StatusCode()), mastodonMessage(resp.StatusCode(), apiErr))
		return "", &out
	}

	return media.ID, nil
}

func mastodonMessage(status int, apiErr mastodonError) string {
	if apiErr.Error != "" {
		return apiErr.Error
	}
	return fmt.Sprintf("mastodon returned status %d", status)
}
