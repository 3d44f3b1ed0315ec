package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tanishq27/postloom/internal/transfer"
)

const tiktokContentInitURL = "https://open.tiktokapis.com/v2/post/publish/content/init/"

type tiktokAdapter struct {
	client *http.Client
}

// NewTiktokAdapter publishes a single photo post via the direct-post
// content API. TikTok pulls the image from the asset URL itself.
func NewTiktokAdapter(client *http.Client) Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &tiktokAdapter{client: client}
}

func (a *tiktokAdapter) Name() string { return Tiktok }

func (a *tiktokAdapter) Publish(ctx context.Context, req Request) Outcome {
	if req.MediaURL == "" {
		return failed(Tiktok, ErrContentRejected, "tiktok posts require an image")
	}

	upload := transfer.TiktokContentInitRequest{
		PostInfo: transfer.TiktokPostInfo{
			Title:          req.Text,
			PrivacyLevel:   "PUBLIC_TO_EVERYONE",
			DisableComment: false,
			AutoAddMusic:   true,
		},
		SourceInfo: transfer.TiktokSourceInfo{
			Source:          "PULL_FROM_URL",
			PhotoCoverIndex: 0,
			PhotoImages:     []string{req.MediaURL},
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	}

	jsonData, err := json.Marshal(upload)
	if err != nil {
		return failed(Tiktok, ErrUnknown, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokContentInitURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return failed(Tiktok, ErrUnknown, err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return failed(Tiktok, KindFromError(err), err.Error())
	}
	defer resp.Body.Close()

	var result transfer.TiktokUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failed(Tiktok, ErrUnknown, err.Error())
	}

	if resp.StatusCode != http.StatusOK || (result.Error.Code != "" && result.Error.Code != "ok") {
		return failed(Tiktok, classifyTiktokError(resp.StatusCode, result.Error.Code), tiktokMessage(resp.StatusCode, result))
	}

	return succeeded(Tiktok, result.Data.PublishID)
}

// classifyTiktokError prefers the API's own error code over HTTP status;
// TikTok reports most failures with a 200-level body code.
func classifyTiktokError(status int, code string) ErrorKind {
	switch code {
	case "access_token_invalid", "scope_not_authorized", "scope_permission_missed":
		return ErrAuthExpired
	case "rate_limit_exceeded", "spam_risk_too_many_posts", "spam_risk_user_banned_from_posting":
		return ErrRateLimited
	case "invalid_file_upload", "picture_size_check_failed", "invalid_params":
		return ErrContentRejected
	case "internal_error":
		return ErrTransientServerError
	}
	return KindFromStatus(status)
}

func tiktokMessage(status int, result transfer.TiktokUploadResponse) string {
	if result.Error.Message != "" {
		return result.Error.Message
	}
	return fmt.Sprintf("tiktok returned status %d", status)
}
