package auth

import (
	"context"
	"fmt"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/database"
	"go-learnerscript/internal/features/audit"
	"go-learnerscript/internal/plugins"
	"go-learnerscript/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type LoginResult struct {
	Token     string `json:"token"`
	UserID    int64  `json:"user_id"`
	Fullname  string `json:"fullname"`
	Role      string `json:"role"`
	SiteAdmin bool   `json:"site_admin"`
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

type AuthServiceImpl struct {
	LMS    *database.LMSDB
	Auth   plugins.Authorizer
	Audit  audit.AuditService
	Logger *zap.Logger
}

func NewAuthService(lms *database.LMSDB, authorizer plugins.Authorizer, auditService audit.AuditService, logger *zap.Logger) AuthService {
	return &AuthServiceImpl{
		LMS:    lms,
		Auth:   authorizer,
		Audit:  auditService,
		Logger: logger,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var user struct {
		ID        int64  `db:"id"`
		Password  string `db:"password"`
		Firstname string `db:"firstname"`
		Lastname  string `db:"lastname"`
		Suspended bool   `db:"suspended"`
	}
	err := s.LMS.Get(ctx, &user,
		`SELECT id, password, firstname, lastname, suspended
		 FROM users WHERE username = ? AND deleted = false`, username)
	if err != nil {
		// Same message for unknown user and bad password.
		return nil, fmt.Errorf("invalid username or password")
	}
	if user.Suspended {
		return nil, fmt.Errorf("account is suspended")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.Logger.Warn("failed login attempt", zap.String("username", username))
		return nil, fmt.Errorf("invalid username or password")
	}

	role := s.primaryRole(ctx, user.ID)
	siteAdmin, err := s.Auth.IsSiteAdmin(ctx, user.ID)
	if err != nil {
		s.Logger.Warn("site admin lookup failed", zap.Int64("userId", user.ID), zap.Error(err))
	}

	token, err := utils.GenerateToken(user.ID, role, common_models.ContextCourse, siteAdmin)
	if err != nil {
		return nil, err
	}

	_ = s.Audit.LogChange(ctx, common_models.AuditActionLogin, "users", fmt.Sprintf("%d", user.ID), nil)

	return &LoginResult{
		Token:     token,
		UserID:    user.ID,
		Fullname:  user.Firstname + " " + user.Lastname,
		Role:      role,
		SiteAdmin: siteAdmin,
	}, nil
}

// primaryRole picks the user's most privileged role assignment. Users with no
// assignments fall back to the student role.
func (s *AuthServiceImpl) primaryRole(ctx context.Context, userID int64) string {
	var role string
	err := s.LMS.Get(ctx, &role,
		`SELECT r.shortname FROM roles r
		 JOIN role_assignments ra ON ra.roleid = r.id
		 WHERE ra.userid = ?
		 ORDER BY r.sortorder LIMIT 1`, userID)
	if err != nil || role == "" {
		return "student"
	}
	return role
}
