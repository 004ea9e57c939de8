package handlers

import (
	"net/http"
	"strings"

	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/libs/auth"
)

// principalFrom extracts the caller from the Authorization header. A missing
// or invalid token yields the zero Principal; the services decide whether
// the operation needs authentication.
func principalFrom(r *http.Request, jwtSecret string) model.Principal {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return model.Principal{}
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return model.Principal{}
	}
	claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), jwtSecret)
	if err != nil {
		return model.Principal{}
	}
	return model.Principal{UserID: claims.Sub, Role: model.Role(claims.Role)}
}
