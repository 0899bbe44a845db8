package services

import (
	"construction_reports/reportbase/auth"
	"construction_reports/reportbase/schema"
	"construction_reports/utils"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Get("/login", s.Login)
		r.Post("/redeem", s.RedeemAccessCode)
		r.Post("/telegram-login", s.LoginWithTelegram)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/info", s.Info)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Get("/list", s.List)
		r.Post("/create", s.CreateAdmin)
	})

	return r
}

type loginResponse struct {
	UserId      int64  `json:"user_id"`
	AccessToken string `json:"access_token"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}

	login, err := s.userAuth.LoginWithCredentials(username, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrInvalidCredentials) {
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	res := loginResponse{UserId: login.UserId, AccessToken: login.AccessToken}
	utils.WriteJsonResponse(w, res)
}

type redeemAccessCodeRequest struct {
	AccessCode string `json:"access_code"`
	TelegramId int64  `json:"telegram_id"`
	Username   string `json:"username"`
}

func (s *UserService) RedeemAccessCode(w http.ResponseWriter, r *http.Request) {
	var params redeemAccessCodeRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.AccessCode == "" || params.TelegramId == 0 {
		http.Error(w, "access_code and telegram_id must be provided", http.StatusUnprocessableEntity)
		return
	}

	login, err := s.userAuth.RedeemAccessCode(params.AccessCode, params.TelegramId, params.Username)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrInvalidAccessCode) {
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("access code redemption failed: %v", err), responseCode)
		return
	}

	slog.Info("access code redeemed", "user_id", login.UserId, "telegram_id", params.TelegramId)

	res := loginResponse{UserId: login.UserId, AccessToken: login.AccessToken}
	utils.WriteJsonResponse(w, res)
}

type telegramLoginRequest struct {
	TelegramId int64 `json:"telegram_id"`
}

func (s *UserService) LoginWithTelegram(w http.ResponseWriter, r *http.Request) {
	var params telegramLoginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	login, err := s.userAuth.LoginWithTelegram(params.TelegramId)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrTelegramNotLinked) {
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	res := loginResponse{UserId: login.UserId, AccessToken: login.AccessToken}
	utils.WriteJsonResponse(w, res)
}

type UserInfo struct {
	Id         int64  `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	TelegramId *int64 `json:"telegram_id,omitempty"`
}

func convertToUserInfo(user *schema.User) UserInfo {
	return UserInfo{
		Id:         user.Id,
		Username:   user.Username,
		Role:       user.Role,
		TelegramId: user.TelegramId,
	}
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	info := convertToUserInfo(&user)
	utils.WriteJsonResponse(w, info)
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	var users []schema.User
	result := s.db.Order("id").Find(&users)
	if result.Error != nil {
		slog.Error("sql error listing users", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, convertToUserInfo(&u))
	}
	utils.WriteJsonResponse(w, infos)
}

type createAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createAdminResponse struct {
	UserId int64 `json:"user_id"`
}

func (s *UserService) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var params createAdminRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Username == "" || params.Password == "" {
		http.Error(w, "username and password must be provided", http.StatusUnprocessableEntity)
		return
	}

	hashedPwd, err := auth.HashPassword(params.Password)
	if err != nil {
		http.Error(w, fmt.Sprintf("error creating admin: %v", err), http.StatusInternalServerError)
		return
	}

	newUser := schema.User{
		Username:  params.Username,
		Role:      schema.AdminRole,
		Password:  hashedPwd,
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "username = ? and role = ?", params.Username, schema.AdminRole)
		if result.Error != nil {
			slog.Error("sql error checking for existing admin username", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("an admin with username %v already exists", params.Username), http.StatusConflict)
		}

		result = txn.Create(&newUser)
		if result.Error != nil {
			slog.Error("sql error creating new admin user", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating admin: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createAdminResponse{UserId: newUser.Id})
}
