package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmartynas/social-login/internal/endpoints"
	"github.com/jmartynas/social-login/internal/errs"
)

var ErrMissingSubject = errors.New("auth: user info has no subject id")

// UserInfo is the provider-independent profile returned by a user info
// endpoint.
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type naverUserInfo struct {
	ResultCode string `json:"resultcode"`
	Message    string `json:"message"`
	Response   struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Name         string `json:"name"`
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"response"`
}

type kakaoUserInfo struct {
	ID         int64 `json:"id"`
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

// ParseUserInfo decodes the user info response body of provider p.
func ParseUserInfo(p endpoints.Provider, body []byte) (*UserInfo, error) {
	var info UserInfo
	switch p {
	case endpoints.Google:
		var u googleUserInfo
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, fmt.Errorf("decode google user info: %w", err)
		}
		info = UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, ImageURL: u.Picture}
		if u.VerifiedEmail != nil && !*u.VerifiedEmail {
			info.Email = ""
		}
	case endpoints.Naver:
		var u naverUserInfo
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, fmt.Errorf("decode naver user info: %w", err)
		}
		if u.ResultCode != "" && u.ResultCode != "00" {
			return nil, fmt.Errorf("naver user info: %s (%s)", u.Message, u.ResultCode)
		}
		info = UserInfo{
			ID:       u.Response.ID,
			Email:    u.Response.Email,
			Name:     u.Response.Name,
			ImageURL: u.Response.ProfileImage,
		}
		if info.Name == "" {
			info.Name = u.Response.Nickname
		}
	case endpoints.Kakao:
		var u kakaoUserInfo
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, fmt.Errorf("decode kakao user info: %w", err)
		}
		if u.ID != 0 {
			info.ID = strconv.FormatInt(u.ID, 10)
		}
		info.Email = u.KakaoAccount.Email
		info.Name = u.KakaoAccount.Profile.Nickname
		if info.Name == "" {
			info.Name = u.Properties.Nickname
		}
		info.ImageURL = u.KakaoAccount.Profile.ProfileImageURL
		if info.ImageURL == "" {
			info.ImageURL = u.Properties.ProfileImage
		}
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownProvider, p)
	}

	if info.ID == "" {
		return nil, fmt.Errorf("%s: %w", p, ErrMissingSubject)
	}
	return &info, nil
}
