package platform

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const facebookGraphBase = "https://graph.facebook.com/v21.0"

type facebookAdapter struct {
	client *resty.Client
}

// NewFacebookAdapter publishes to a page feed. AccountRef is the page id
// and the access token must be a page token.
func NewFacebookAdapter(client *resty.Client) Adapter {
	return &facebookAdapter{client: client}
}

func (a *facebookAdapter) Name() string { return Facebook }

type graphError struct {
	Error struct {
		Message     string `json:"message"`
		Type        string `json:"type"`
		Code        int    `json:"code"`
		IsTransient bool   `json:"is_transient"`
	} `json:"error"`
}

type graphPostResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

func (a *facebookAdapter) Publish(ctx context.Context, req Request) Outcome {
	endpoint := fmt.Sprintf("%s/%s/feed", facebookGraphBase, req.AccountRef)
	form := map[string]string{
		"message":      req.Text,
		"access_token": req.AccessToken,
	}
	if req.MediaURL != "" {
		endpoint = fmt.Sprintf("%s/%s/photos", facebookGraphBase, req.AccountRef)
		form["url"] = req.MediaURL
		form["caption"] = req.Text
		delete(form, "message")
	}

	var result graphPostResponse
	var apiErr graphError
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		SetError(&apiErr).
		Post(endpoint)
	if err != nil {
		return failed(Facebook, KindFromError(err), err.Error())
	}
	if resp.IsError() {
		return failed(Facebook, classifyGraphError(resp.StatusCode(), apiErr), graphMessage(resp.StatusCode(), apiErr))
	}

	externalID := result.PostID
	if externalID == "" {
		externalID = result.ID
	}
	return succeeded(Facebook, externalID)
}

// classifyGraphError maps Graph API error codes onto the taxonomy; Graph
// reports auth and throttling through codes, not HTTP status alone.
func classifyGraphError(status int, apiErr graphError) ErrorKind {
	switch apiErr.Error.Code {
	case 190: // invalid or expired token
		return ErrAuthExpired
	case 4, 17, 32, 613: // app/user/page throttling
		return ErrRateLimited
	case 100: // invalid parameter, e.g. unfetchable photo URL
		return ErrContentRejected
	}
	if apiErr.Error.IsTransient {
		return ErrTransientServerError
	}
	return KindFromStatus(status)
}

func graphMessage(status int, apiErr graphError) string {
	if apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return fmt.Sprintf("graph api returned status %d", status)
}
