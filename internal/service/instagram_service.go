package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	config "github.com/tanishq27/postloom/configs"
	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/internal/transfer"
	"github.com/tanishq27/postloom/pkg/utils"
)

type InstagramService interface {
	InstagramCallback(ctx context.Context, code string, userID int64) error
	RefreshInstagramToken(ctx context.Context, userID int64, accessToken, refreshToken string) error
}

type instagramService struct {
	cfg    *config.Config
	sa     repository.SocialAccountRepository
	client *resty.Client
}

func NewInstagramService(cfg *config.Config, sa repository.SocialAccountRepository) InstagramService {
	return &instagramService{
		cfg:    cfg,
		sa:     sa,
		client: resty.New().SetTimeout(15 * time.Second),
	}
}

// InstagramCallback exchanges the authorization code for a short-lived
// token, trades that for a long-lived one, and stores the account. The
// long-lived token doubles as the refresh credential.
func (s *instagramService) InstagramCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	var shortLived struct {
		AccessToken string `json:"access_token"`
		UserID      int64  `json:"user_id"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     s.cfg.InstagramClientID,
			"client_secret": s.cfg.InstagramClientSecret,
			"grant_type":    "authorization_code",
			"redirect_uri":  s.cfg.InstagramRedirectURI,
			"code":          code,
		}).
		SetResult(&shortLived).
		Post("https://api.instagram.com/oauth/access_token")
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("instagram token endpoint returned status %d", resp.StatusCode())
	}

	var longLived transfer.InstagramLongLivedToken
	resp, err = s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":    "ig_exchange_token",
			"client_secret": s.cfg.InstagramClientSecret,
			"access_token":  shortLived.AccessToken,
		}).
		SetResult(&longLived).
		Get("https://graph.instagram.com/access_token")
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("instagram long-lived exchange returned status %d", resp.StatusCode())
	}

	userInfo, err := s.instagramUserInfo(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(longLived.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        platform.Instagram,
		AccountID:       userInfo.UserID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Username,
		ProfilePicture:  userInfo.ProfilePicture,
		AccessToken:     encryptedToken,
		RefreshToken:    encryptedToken,
		TokenExpiresAt:  GetExpiresAt(longLived.ExpiresIn),
		AccountStatus:   models.AccountStatusActive,
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	return err
}

func (s *instagramService) instagramUserInfo(ctx context.Context, accessToken string) (*transfer.InstagramUserInfo, error) {
	var result transfer.InstagramUserInfo
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,username,name,profile_picture_url",
			"access_token": accessToken,
		}).
		SetResult(&result).
		Get("https://graph.instagram.com/me")
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("instagram user info returned status %d", resp.StatusCode())
	}
	return &result, nil
}

// RefreshInstagramToken extends a long-lived token before expiry.
func (s *instagramService) RefreshInstagramToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	decrypted, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var refreshed transfer.InstagramLongLivedToken
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":   "ig_refresh_token",
			"access_token": decrypted,
		}).
		SetResult(&refreshed).
		Get("https://graph.instagram.com/refresh_access_token")
	if err != nil {
		return err
	}
	if resp.IsError() || refreshed.AccessToken == "" {
		return fmt.Errorf("instagram refresh returned status %d", resp.StatusCode())
	}

	encryptedToken, err := utils.Encrypt([]byte(refreshed.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedToken,
		RefreshToken:   encryptedToken,
		TokenExpiresAt: GetExpiresAt(refreshed.ExpiresIn),
	}
	return s.sa.SetToken(ctx, userID, accessToken, &socialAccount)
}
