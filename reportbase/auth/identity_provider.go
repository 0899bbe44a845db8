package auth

import (
	"construction_reports/reportbase/schema"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrInvalidAccessCode  = errors.New("access code is invalid or has already been used")
	ErrTelegramNotLinked  = errors.New("no user is linked to the given telegram id")
	ErrGeneratingJwt      = errors.New("error generating jwt")
)

type LoginResult struct {
	UserId      int64
	AccessToken string
}

type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	// LoginWithCredentials authenticates admins by username and password.
	LoginWithCredentials(username, password string) (LoginResult, error)

	// RedeemAccessCode consumes a one time onboarding code, permanently
	// binding the telegram id to the user the code was issued for.
	RedeemAccessCode(code string, telegramId int64, username string) (LoginResult, error)

	// LoginWithTelegram issues a token for a user whose telegram id has
	// already been bound through RedeemAccessCode.
	LoginWithTelegram(telegramId int64) (LoginResult, error)
}

func addInitialAdminToDb(db *gorm.DB, username string, password []byte) error {
	user := schema.User{
		Username:  username,
		Role:      schema.AdminRole,
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}

	err := db.Transaction(func(txn *gorm.DB) error {
		var existingAdmin schema.User
		result := txn.Limit(1).Find(&existingAdmin, "role = ? and username = ?", schema.AdminRole, username)
		if result.Error != nil {
			slog.Error("sql error checking if admin has already been added", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected == 0 {
			result := txn.Create(&user)
			if result.Error != nil {
				slog.Error("sql error creating initial admin user", "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return nil
}

func HashPassword(password string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, fmt.Errorf("error encrypting password: %w", err)
	}
	return hashed, nil
}

type requestContextKey string

const userRequestContextKey requestContextKey = "user"
