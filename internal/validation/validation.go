// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 30
	PasswordMinLen = 8
	// PasswordMaxLen ограничен длиной входа bcrypt.
	PasswordMaxLen = 72
	OTPCodeLen     = 6
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// NormalizeEmail приводит адрес к каноническому виду: без пробелов по краям и в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail проверяет, что строка является голым адресом вида local@domain.tld.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// IsValidUsername проверяет длину и допустимые символы имени пользователя.
func IsValidUsername(username string) bool {
	n := len(username)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return false
	}
	return usernamePattern.MatchString(username)
}

// IsValidPassword проверяет длину пароля в символах и байтах.
func IsValidPassword(password string) bool {
	if utf8.RuneCountInString(password) < PasswordMinLen {
		return false
	}
	return len(password) <= PasswordMaxLen
}

// IsValidOTPCode проверяет, что код состоит ровно из шести цифр.
func IsValidOTPCode(code string) bool {
	if len(code) != OTPCodeLen {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// IsUUID сообщает, является ли строка идентификатором в формате UUID.
func IsUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// MissingAddressField возвращает имя первого незаполненного обязательного поля адреса доставки
// или пустую строку. Регион необязателен.
func MissingAddressField(street, city, country, zipCode string) string {
	fields := []struct {
		name  string
		value string
	}{
		{"street", street},
		{"city", city},
		{"country", country},
		{"zipCode", zipCode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}
