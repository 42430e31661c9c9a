package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/server/accounts"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Postcode string `json:"postcode"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type userDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type profileDTO struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	ClientCode string `json:"client_code"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Postcode   string `json:"postcode"`
	Address    string `json:"address"`
	TaxID      string `json:"tax_id"`
}

func newProfileDTO(account *accounts.Account, profile *accounts.Profile) profileDTO {
	return profileDTO{
		Username:   account.Username,
		Email:      account.Email,
		ClientCode: profile.ClientCode,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		Phone:      profile.Phone,
		Country:    profile.Country,
		City:       profile.City,
		Postcode:   profile.Postcode,
		Address:    profile.Address,
		TaxID:      profile.TaxID,
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	_, err := s.accounts.Signup(r.Context(), &accounts.SignupRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Postcode: req.Postcode,
	})
	if err != nil {
		var verr *accounts.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"errors": map[string]string{verr.Field: verr.Message},
			})
			return
		}
		s.logger.Error(r.Context(), "signup failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	login := strings.TrimSpace(req.Username)
	if login == "" {
		login = strings.TrimSpace(req.Email)
	}
	if login == "" || req.Password == "" {
		errorJSON(w, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, account, err := s.accounts.Login(r.Context(), login, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			errorJSON(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		s.logger.Error(r.Context(), "login failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access":  pair.AccessToken,
		"refresh": pair.RefreshToken,
		"user":    userDTO{ID: account.ID, Username: account.Username, Email: account.Email},
	})
}

func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Refresh == "" {
		errorJSON(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	pair, err := s.accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, common.ErrRefreshTokenExpired) {
			errorJSON(w, http.StatusUnauthorized, "refresh token expired or invalid")
			return
		}
		s.logger.Error(r.Context(), "token refresh failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access":  pair.AccessToken,
		"refresh": pair.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.accounts.Logout(r.Context(), req.Refresh); err != nil {
		s.logger.Warn(r.Context(), "logout failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	account, profile, err := s.accounts.Subject(r.Context(), accountIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			errorJSON(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.Error(r.Context(), "profile lookup failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, newProfileDTO(account, profile))
}

type profileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Country   *string `json:"country"`
	City      *string `json:"city"`
	Postcode  *string `json:"postcode"`
	Address   *string `json:"address"`
	TaxID     *string `json:"tax_id"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	accountID := accountIDFromContext(r.Context())

	profile, err := s.accounts.UpdateProfile(r.Context(), accountID, accounts.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Country:   req.Country,
		City:      req.City,
		Postcode:  req.Postcode,
		Address:   req.Address,
		TaxID:     req.TaxID,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			errorJSON(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.Error(r.Context(), "profile update failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	account, _, err := s.accounts.Subject(r.Context(), accountID)
	if err != nil {
		s.logger.Error(r.Context(), "profile reload failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"data":    newProfileDTO(account, profile),
	})
}
