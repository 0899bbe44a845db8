package auth

import (
	"construction_reports/reportbase/schema"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gorm.io/gorm"
)

func AdminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if user.Role != schema.AdminRole {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// VisibleObjectIds returns the object ids the user may see reports for.
// Admins see every object, so a nil slice with ok=false signals no filter.
func VisibleObjectIds(user schema.User, db *gorm.DB) ([]int64, bool, error) {
	if user.Role == schema.AdminRole {
		return nil, false, nil
	}

	var client schema.Client
	result := db.First(&client, "user_id = ?", user.Id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return []int64{}, true, nil
		}
		slog.Error("sql error loading client for user", "user_id", user.Id, "error", result.Error)
		return nil, false, schema.ErrDbAccessFailed
	}

	ids, err := schema.GetClientObjectIds(client.Id, db)
	if err != nil {
		return nil, false, err
	}

	return ids, true, nil
}
