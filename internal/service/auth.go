package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/repository"
	"github.com/mmeshcher/ink-panels/internal/validation"
)

// Назначения кодов подтверждения.
const (
	PurposeRegister = "register"
	PurposeLogin    = "login"
	PurposeReset    = "reset"
)

// AuthResult содержит выпущенный токен и пользователя.
type AuthResult struct {
	Token string
	User  *model.User
}

// RegisterInput содержит данные регистрации по паролю.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// VerifyOTPInput содержит данные проверки кода. Username и Password нужны только при первом входе.
type VerifyOTPInput struct {
	Email    string
	Code     string
	Username string
	Password string
}

// ProfileUpdate содержит изменяемые поля профиля. Пустые значения оставляют текущие.
type ProfileUpdate struct {
	Username string
	Email    string
}

func normalizeEmail(email string) string {
	return validation.NormalizeEmail(email)
}

func validEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", invalid("email", "email is required")
	}
	if !validation.IsValidEmail(email) {
		return "", invalid("email", "email format is invalid")
	}
	return email, nil
}

func checkUsername(username string) error {
	if !validation.IsValidUsername(username) {
		return invalid("username", fmt.Sprintf("username must be %d-%d characters of letters, digits, '_' or '-'",
			validation.UsernameMinLen, validation.UsernameMaxLen))
	}
	return nil
}

func checkPassword(password string) error {
	if password == "" {
		return invalid("password", "password is required")
	}
	if !validation.IsValidPassword(password) {
		return invalid("password", fmt.Sprintf("password must be %d-%d characters",
			validation.PasswordMinLen, validation.PasswordMaxLen))
	}
	return nil
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func (s *Service) issue(u *model.User) (*AuthResult, error) {
	token, err := s.tokens.IssueToken(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

// SendOTP выдаёт код подтверждения и отправляет его на email. Повторный запрос для того же
// адреса раньше чем через минуту отклоняется.
func (s *Service) SendOTP(ctx context.Context, email, purpose string) error {
	email, err := validEmail(email)
	if err != nil {
		return err
	}

	purpose = strings.ToLower(strings.TrimSpace(purpose))
	switch purpose {
	case "":
		purpose = PurposeRegister
	case PurposeRegister, PurposeLogin, PurposeReset:
	default:
		return invalid("purpose", "purpose must be one of register, login, reset")
	}

	if s.mailer == nil {
		return ErrMailerDisabled
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash otp code: %w", err)
	}

	now := s.now()
	rec := &model.OTPVerification{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(otpTTL),
	}

	created, err := s.repo.CreateOTPIfAllowed(ctx, rec, now.Add(-otpResendInterval))
	if err != nil {
		return err
	}
	if !created {
		return ErrRateLimited
	}

	if err := s.mailer.SendOTP(ctx, email, code, otpTTL); err != nil {
		s.logger.Error("otp mail delivery failed", zap.String("otp_id", rec.ID), zap.Error(err))
		if delErr := s.repo.DeleteOTP(context.WithoutCancel(ctx), rec.ID); delErr != nil {
			s.logger.Error("failed to remove undelivered otp", zap.String("otp_id", rec.ID), zap.Error(delErr))
		}
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	return nil
}

// VerifyOTP проверяет код, подтверждает email или создаёт учётную запись и выпускает токен.
func (s *Service) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, invalid("code", "code is required")
	}
	if in.Username != "" {
		if err := checkUsername(in.Username); err != nil {
			return nil, err
		}
	}

	recs, err := s.repo.RecentUnusedOTPs(ctx, email, otpCandidates)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrOTPNotFound
	}

	now := s.now()
	var matched *model.OTPVerification
	if validation.IsValidOTPCode(code) {
		for i := range recs {
			if !recs[i].ExpiresAt.After(now) {
				continue
			}
			if bcrypt.CompareHashAndPassword(recs[i].CodeHash, []byte(code)) == nil {
				matched = &recs[i]
				break
			}
		}
	}

	if matched == nil {
		if err := s.repo.IncrementOTPAttempts(ctx, recs[0].ID); err != nil {
			s.logger.Warn("failed to count otp attempt", zap.String("otp_id", recs[0].ID), zap.Error(err))
		}
		return nil, ErrOTPInvalid
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserNotFound):
		if err := checkPassword(in.Password); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if in.Username != "" {
		var exceptID string
		if existing != nil {
			exceptID = existing.ID
		}
		taken, err := s.repo.UsernameTaken(ctx, in.Username, exceptID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, repository.ErrUsernameTaken
		}
	}

	won, err := s.repo.MarkOTPUsed(ctx, matched.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrOTPInvalid
	}

	if existing != nil {
		u, err := s.repo.MarkUserVerified(ctx, existing.ID, in.Username)
		if err != nil {
			return nil, err
		}
		return s.issue(u)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.CreateUser(ctx, &model.User{
		Email:         email,
		Username:      in.Username,
		PasswordHash:  hash,
		Role:          s.roleFor(email),
		EmailVerified: true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created via otp", zap.String("user_id", u.ID))

	return s.issue(u)
}

// Register создаёт учётную запись по паролю и выпускает токен.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := checkUsername(in.Username); err != nil {
		return nil, err
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, &model.User{
		Email:        email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         s.roleFor(email),
	})
	if err != nil {
		return nil, err
	}

	return s.issue(u)
}

// Login проверяет email и пароль и выпускает токен.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("email", "email and password are required")
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if len(u.PasswordHash) == 0 || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(u)
}

// GetUser возвращает профиль пользователя вместе со списком желаемого.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	if !validation.IsUUID(id) {
		return nil, repository.ErrUserNotFound
	}
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Wishlist, err = s.GetWishlist(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProfile меняет имя пользователя и email. Смена email снимает отметку о подтверждении.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*model.User, error) {
	current, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	username := current.Username
	if in.Username != "" {
		if err := checkUsername(in.Username); err != nil {
			return nil, err
		}
		username = in.Username
	}

	email := current.Email
	if strings.TrimSpace(in.Email) != "" {
		if email, err = validEmail(in.Email); err != nil {
			return nil, err
		}
	}

	u, err := s.repo.UpdateUserProfile(ctx, id, email, username)
	if err != nil {
		return nil, err
	}
	u.Wishlist = current.Wishlist
	return u, nil
}

// AddToWishlist добавляет позицию в список желаемого и возвращает обновлённый список.
func (s *Service) AddToWishlist(ctx context.Context, userID, mangaID string) ([]string, error) {
	if !validation.IsUUID(mangaID) {
		return nil, repository.ErrMangaNotFound
	}
	if err := s.repo.AddToWishlist(ctx, userID, mangaID); err != nil {
		return nil, err
	}
	return s.GetWishlist(ctx, userID)
}

// RemoveFromWishlist удаляет позицию из списка желаемого. Отсутствующая позиция игнорируется.
func (s *Service) RemoveFromWishlist(ctx context.Context, userID, mangaID string) ([]string, error) {
	if validation.IsUUID(mangaID) {
		if err := s.repo.RemoveFromWishlist(ctx, userID, mangaID); err != nil {
			return nil, err
		}
	}
	return s.GetWishlist(ctx, userID)
}

// GetWishlist возвращает идентификаторы позиций списка желаемого.
func (s *Service) GetWishlist(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.repo.GetWishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
