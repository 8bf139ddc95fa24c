// Package validate は入力値の形式チェックを提供する。
package validate

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		instance = v
	})
	return instance
}

// Email はメールアドレスとして有効かを返す。
func Email(s string) bool {
	return get().Var(s, "required,email") == nil
}

// Username はユーザー名として有効か（3〜30文字、英数字と . _ - のみ）を返す。
func Username(s string) bool {
	return get().Var(s, "required,min=3,max=30,username") == nil
}

// Password はパスワードとして有効か（8文字以上）を返す。
func Password(s string) bool {
	return get().Var(s, "required,min=8,max=72") == nil
}
