package auth

import (
	"fmt"
	"unicode"

	"syncx/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	if err := validate.RegisterValidation("handle", isHandle); err != nil {
		panic(fmt.Sprintf("register handle validation: %v", err))
	}
}

// isHandle accepts letters, digits and the separators _ . -
func isHandle(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

type RegisterRequest struct {
	Name     string `form:"name" json:"name" validate:"required,max=64"`
	Username string `form:"username" json:"username" validate:"required,min=3,max=32,handle"`
	Password string `form:"password" json:"password" validate:"required,min=8,max=72"`
	Bio      string `form:"bio" json:"bio" validate:"required,max=280"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return errors.ErrValidation.WithMessage("%v", err)
	}

	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func ValidateLogin(req LoginRequest) error {
	if err := validate.Struct(req); err != nil {
		return errors.ErrValidation.WithMessage("please enter username and password")
	}
	return nil
}

// Validate checks any request struct carrying validate tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return errors.ErrValidation.WithMessage("%v", err)
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
