package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/model/dto"
	"github.com/qs3c/clone_gen_server/internal/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrAuthNotConfigured  = errors.New("管理员账号未配置")
)

// AuthService 操作员认证
// 单操作员部署，账号在配置文件里，不走数据库
type AuthService struct {
	cfg *config.Config
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// Login 校验操作员凭证并签发 token
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	if s.cfg.Auth.AdminUsername == "" || s.cfg.Auth.AdminPasswordHash == "" {
		return nil, ErrAuthNotConfigured
	}

	if req.Username != s.cfg.Auth.AdminUsername {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(s.cfg.Auth.AdminPasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(req.Username, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token:     token,
		ExpiresIn: s.cfg.JWT.ExpireHours * 3600,
	}, nil
}
