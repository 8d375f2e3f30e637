package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/repository"
	"github.com/quickcourt/reservation-core/internal/utils"
)

// OTPStore is implemented by repository.RedisOTPStore and
// repository.MemoryOTPStore.
type OTPStore interface {
	PutOTP(ctx context.Context, email, codeHash string, ttl time.Duration) error
	CheckOTP(ctx context.Context, email, codeHash string) error
}

// OTPSender delivers a sign-up code to its owner.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// LogOTPSender writes codes to the log. It stands in for a mail provider
// in development.
type LogOTPSender struct {
	Log *zap.Logger
}

func (s LogOTPSender) SendOTP(_ context.Context, email, code string) error {
	s.Log.Info("sign-up code issued", zap.String("email", email), zap.String("otp", code))
	return nil
}

const defaultOTPTTL = 10 * time.Minute

// sendOTP stores a fresh code for email and hands it to the sender.
func (h *AuthHandler) sendOTP(ctx context.Context, email string) (time.Time, error) {
	ttl := h.Cfg.OTPTTL
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	code, err := utils.NewOTP()
	if err != nil {
		return time.Time{}, err
	}
	if err := h.OTPs.PutOTP(ctx, email, utils.HashOTP(email, code), ttl); err != nil {
		h.Log.Error("otp store failed", zap.String("email", email), zap.Error(err))
		return time.Time{}, err
	}
	if err := h.Sender.SendOTP(ctx, email, code); err != nil {
		h.Log.Error("otp send failed", zap.String("email", email), zap.Error(err))
		return time.Time{}, err
	}
	return time.Now().Add(ttl).UTC(), nil
}

type verifyOTPReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func validOTP(code string) bool {
	if len(code) != utils.OTPLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// VerifyOTP handles POST /v1/auth/verify-otp {"email","otp"}. A matching
// code verifies the account and returns a token pair.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.OTP = strings.TrimSpace(req.OTP)
	if req.Email == "" || !validOTP(req.OTP) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a 6-digit otp required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_otp"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.EmailVerified {
		return c.JSON(http.StatusConflict, echo.Map{"error": "already_verified"})
	}

	switch err := h.OTPs.CheckOTP(ctx, req.Email, utils.HashOTP(req.Email, req.OTP)); {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "otp_expired"})
	case errors.Is(err, repository.ErrOTPMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_otp"})
	case err != nil:
		h.Log.Error("otp check failed", zap.String("email", req.Email), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}

	if err := h.Users.MarkVerified(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account suspended"})
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

type resendOTPReq struct {
	Email string `json:"email"`
}

// ResendOTP handles POST /v1/auth/resend-otp {"email"}. It replaces the
// pending code of an unverified account. The answer does not reveal
// whether the address is registered.
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req resendOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil && !u.EmailVerified && u.IsActive:
		if _, err := h.sendOTP(ctx, req.Email); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not send verification code"})
		}
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"verification": "otp_sent"})
}
