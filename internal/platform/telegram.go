package platform

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const telegramAPIBase = "https://api.telegram.org"

type telegramAdapter struct {
	client *resty.Client
}

// NewTelegramAdapter posts through the Bot API. The account's access token
// is the bot token and AccountRef is the channel/chat id the bot posts to.
func NewTelegramAdapter(client *resty.Client) Adapter {
	return &telegramAdapter{client: client}
}

func (a *telegramAdapter) Name() string { return Telegram }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (a *telegramAdapter) Publish(ctx context.Context, req Request) Outcome {
	method := "sendMessage"
	body := map[string]interface{}{
		"chat_id": req.AccountRef,
	}
	if req.MediaURL != "" {
		// Telegram fetches the photo URL itself.
		method = "sendPhoto"
		body["photo"] = req.MediaURL
		body["caption"] = req.Text
	} else {
		body["text"] = req.Text
	}

	var result telegramResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("%s/bot%s/%s", telegramAPIBase, req.AccessToken, method))
	if err != nil {
		return failed(Telegram, KindFromError(err), err.Error())
	}

	if !result.OK {
		kind := KindFromStatus(resp.StatusCode())
		if result.Parameters.RetryAfter > 0 {
			kind = ErrRateLimited
		}
		msg := result.Description
		if msg == "" {
			msg = fmt.Sprintf("telegram returned status %d", resp.StatusCode())
		}
		return failed(Telegram, kind, msg)
	}

	return succeeded(Telegram, fmt.Sprintf("%d", result.Result.MessageID))
}
