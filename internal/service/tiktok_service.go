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

const tiktokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"

type TiktokService interface {
	TiktokCallback(ctx context.Context, code string, userID int64) error
	RefreshTiktokToken(ctx context.Context, userID int64, accessToken, refreshToken string) error
}

type tiktokService struct {
	cfg    *config.Config
	sa     repository.SocialAccountRepository
	client *resty.Client
}

func NewTiktokService(cfg *config.Config, sa repository.SocialAccountRepository) TiktokService {
	return &tiktokService{
		cfg:    cfg,
		sa:     sa,
		client: resty.New().SetTimeout(15 * time.Second),
	}
}

func (s *tiktokService) TiktokCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	tokenResponse, err := s.exchangeCodeForToken(ctx, code)
	if err != nil {
		return err
	}

	userInfo, err := s.tiktokUserInfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        platform.Tiktok,
		AccountID:       userInfo.Data.User.OpenID,
		AccountName:     userInfo.Data.User.DisplayName,
		AccountUsername: userInfo.Data.User.Username,
		ProfilePicture:  userInfo.Data.User.AvatarURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  GetExpiresAt(tokenResponse.ExpiresIn),
		AccountStatus:   models.AccountStatusActive,
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	return err
}

func (s *tiktokService) exchangeCodeForToken(ctx context.Context, code string) (*transfer.TiktokTokenResponse, error) {
	var tokenResponse transfer.TiktokTokenResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_key":    s.cfg.TiktokClientKey,
			"client_secret": s.cfg.TiktokClientSecret,
			"code":          code,
			"grant_type":    "authorization_code",
			"redirect_uri":  s.cfg.TiktokRedirectURI,
		}).
		SetResult(&tokenResponse).
		Post(tiktokTokenURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tiktok token endpoint returned status %d", resp.StatusCode())
	}
	return &tokenResponse, nil
}

func (s *tiktokService) tiktokUserInfo(ctx context.Context, accessToken string) (*transfer.TiktokUserInfoResponse, error) {
	var result transfer.TiktokUserInfoResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("fields", "open_id,avatar_url,display_name,username").
		SetResult(&result).
		Get("https://open.tiktokapis.com/v2/user/info/")
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tiktok user info returned status %d", resp.StatusCode())
	}
	return &result, nil
}

// RefreshTiktokToken exchanges the stored refresh token for fresh
// credentials. accessToken is the currently stored (encrypted) value; it
// keys the conditional update so a concurrent refresh cannot double-write.
func (s *tiktokService) RefreshTiktokToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var tokenResponse transfer.TiktokTokenResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_key":    s.cfg.TiktokClientKey,
			"client_secret": s.cfg.TiktokClientSecret,
			"grant_type":    "refresh_token",
			"refresh_token": decryptedRefreshToken,
		}).
		SetResult(&tokenResponse).
		Post(tiktokTokenURL)
	if err != nil {
		return err
	}
	if resp.IsError() || tokenResponse.AccessToken == "" {
		return fmt.Errorf("tiktok refresh returned status %d", resp.StatusCode())
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: GetExpiresAt(tokenResponse.ExpiresIn),
	}
	return s.sa.SetToken(ctx, userID, accessToken, &socialAccount)
}
