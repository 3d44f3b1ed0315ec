package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	config "github.com/tanishq27/postloom/configs"
	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/pkg/utils"
)

type FacebookService interface {
	FacebookCallback(ctx context.Context, code string, userID int64) error
}

type facebookService struct {
	cfg    *config.Config
	sa     repository.SocialAccountRepository
	client *resty.Client
}

func NewFacebookService(cfg *config.Config, sa repository.SocialAccountRepository) FacebookService {
	return &facebookService{
		cfg:    cfg,
		sa:     sa,
		client: resty.New().SetTimeout(15 * time.Second),
	}
}

// FacebookCallback finishes the OAuth flow and stores one account per page
// the user manages. Page tokens obtained from a long-lived user token do
// not expire, so no refresh entry is scheduled for them.
func (s *facebookService) FacebookCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     s.cfg.FacebookClientID,
		ClientSecret: s.cfg.FacebookClientSecret,
		RedirectURL:  s.cfg.FacebookRedirectURI,
		Scopes:       []string{"pages_manage_posts", "pages_read_engagement", "pages_show_list"},
		Endpoint:     facebook.Endpoint,
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	var pages struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token.AccessToken).
		SetResult(&pages).
		Get("https://graph.facebook.com/v21.0/me/accounts")
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("facebook pages lookup returned status %d", resp.StatusCode())
	}
	if len(pages.Data) == 0 {
		return errors.New("no managed pages found for this account")
	}

	for _, page := range pages.Data {
		encrypted, eerr := utils.Encrypt([]byte(page.AccessToken), []byte(s.cfg.SecretKey))
		if eerr != nil {
			return eerr
		}

		_, err = s.sa.Create(ctx, nil, &models.SocialAccount{
			UserID:        userID,
			Platform:      platform.Facebook,
			AccountID:     page.ID,
			AccountName:   page.Name,
			AccessToken:   encrypted,
			AccountStatus: models.AccountStatusActive,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
