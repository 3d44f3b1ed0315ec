package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	config "github.com/tanishq27/postloom/configs"
	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/internal/transfer"
	"github.com/tanishq27/postloom/pkg/utils"
)

const (
	tiktokAuthURL    = "https://www.tiktok.com/v2/auth/authorize"
	instagramAuthURL = "https://www.instagram.com/oauth/authorize"
)

// PlatformService manages connected social accounts. Facebook, Instagram
// and TikTok connect through OAuth redirects; Mastodon and Telegram take
// user-supplied credentials, verified with one API call before storing.
type PlatformService interface {
	GetAuthURL(ctx context.Context, platformName, state string) string
	ConnectMastodon(ctx context.Context, userID int64, serverURL, accessToken string) error
	ConnectTelegram(ctx context.Context, userID int64, botToken, chatID string) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cfg    *config.Config
	sa     repository.SocialAccountRepository
	client *resty.Client
}

func NewPlatformService(cfg *config.Config, sa repository.SocialAccountRepository) PlatformService {
	return &platformService{
		cfg:    cfg,
		sa:     sa,
		client: resty.New().SetTimeout(15 * time.Second),
	}
}

func (s *platformService) facebookOAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.FacebookClientID,
		ClientSecret: s.cfg.FacebookClientSecret,
		RedirectURL:  s.cfg.FacebookRedirectURI,
		Scopes:       []string{"pages_manage_posts", "pages_read_engagement", "pages_show_list"},
		Endpoint:     facebook.Endpoint,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platformName, state string) string {
	switch platformName {
	case platform.Facebook:
		return s.facebookOAuth().AuthCodeURL(state)

	case platform.Instagram:
		params := url.Values{}
		params.Add("client_id", s.cfg.InstagramClientID)
		params.Add("scope", "instagram_business_basic,instagram_business_content_publish")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.InstagramRedirectURI)
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", instagramAuthURL, params.Encode())

	case platform.Tiktok:
		params := url.Values{}
		params.Add("client_key", s.cfg.TiktokClientKey)
		params.Add("scope", "user.info.basic,user.info.profile,video.publish,video.upload")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.TiktokRedirectURI)
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", tiktokAuthURL, params.Encode())

	default:
		return ""
	}
}

// ConnectMastodon stores a user-supplied instance URL and access token.
// The token is verified against the instance before it is persisted.
func (s *platformService) ConnectMastodon(ctx context.Context, userID int64, serverURL, accessToken string) error {
	if serverURL == "" || accessToken == "" {
		err := errors.New("server URL and access token are required")
		slog.Info(err.Error())
		return err
	}

	var account struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Avatar      string `json:"avatar"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&account).
		Get(serverURL + "/api/v1/accounts/verify_credentials")
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("credential verification failed with status %d", resp.StatusCode())
	}

	encrypted, err := utils.Encrypt([]byte(accessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.sa.Create(ctx, nil, &models.SocialAccount{
		UserID:          userID,
		Platform:        platform.Mastodon,
		AccountID:       account.ID,
		AccountName:     account.DisplayName,
		AccountUsername: account.Username,
		ProfilePicture:  account.Avatar,
		ServerURL:       sql.NullString{String: serverURL, Valid: true},
		AccessToken:     encrypted,
		AccountStatus:   models.AccountStatusActive,
	})
	return err
}

// ConnectTelegram stores a bot token plus the chat the bot posts into.
// getMe verifies the token.
func (s *platformService) ConnectTelegram(ctx context.Context, userID int64, botToken, chatID string) error {
	if botToken == "" || chatID == "" {
		err := errors.New("bot token and chat id are required")
		slog.Info(err.Error())
		return err
	}

	var me struct {
		OK     bool `json:"ok"`
		Result struct {
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"result"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&me).
		Get(fmt.Sprintf("https://api.telegram.org/bot%s/getMe", botToken))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if resp.IsError() || !me.OK {
		return errors.New("bot token verification failed")
	}

	encrypted, err := utils.Encrypt([]byte(botToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.sa.Create(ctx, nil, &models.SocialAccount{
		UserID:          userID,
		Platform:        platform.Telegram,
		AccountID:       chatID,
		AccountName:     me.Result.FirstName,
		AccountUsername: me.Result.Username,
		AccessToken:     encrypted,
		AccountStatus:   models.AccountStatusActive,
	})
	return err
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts")
	}
	return accounts, nil
}

func (s *platformService) Delete(ctx context.Context, userID, accountID int64) error {
	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	accountInfo, err := s.sa.GetByID(ctx, accountID)
	if err != nil || accountInfo == nil {
		return fmt.Errorf("unable to get social account info")
	}

	if accountInfo.Platform == platform.Tiktok {
		decrypted, derr := utils.Decrypt(accountInfo.AccessToken, []byte(s.cfg.SecretKey))
		if derr == nil {
			if rerr := s.revokeTiktokAccess(ctx, accountInfo.AccountID, decrypted); rerr != nil {
				slog.Info(rerr.Error())
			}
		}
	}

	if err := s.sa.Remove(ctx, accountID); err != nil {
		return fmt.Errorf("error removing account info")
	}
	return nil
}

func (s *platformService) revokeTiktokAccess(ctx context.Context, openID, accessToken string) error {
	var result transfer.TiktokError
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"open_id":      openID,
			"access_token": accessToken,
		}).
		SetResult(&result).
		Post("https://open-api.tiktok.com/oauth/revoke/")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("failed to revoke token: %s", result.Message)
	}
	return nil
}
