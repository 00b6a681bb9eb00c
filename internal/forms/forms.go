// Package forms decodes posted HTML forms and validates them field by field.
package forms

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/jjudge-oj/accounts/internal/passwords"
)

const (
	MsgRequired        = "This field is required."
	MsgInvalidEmail    = "Enter a valid email address."
	MsgUsernameTaken   = "A user with that username already exists."
	MsgInvalidUsername = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgInvalidLogin    = "Please enter a correct username and password. Note that both fields may be case-sensitive."
	MsgPasswordTooLong = "Ensure this value has at most 72 bytes."
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

var (
	decoder  = form.NewDecoder()
	validate = newValidator()
)

// Cleaner is implemented by forms that normalize their input before validation.
type Cleaner interface {
	Clean()
}

// Registration is the sign-up form.
type Registration struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Email     string `form:"email" validate:"omitempty,max=254,email"`
	Password  string `form:"password" validate:"required,passwordlen"`
}

func (f *Registration) Clean() {
	f.Username = strings.TrimSpace(f.Username)
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
}

// Login is the credentials form. Next is the path to return to afterwards.
type Login struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}

func (f *Login) Clean() {
	f.Username = strings.TrimSpace(f.Username)
	f.Next = strings.TrimSpace(f.Next)
}

// Profile is the edit form for the current user.
type Profile struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Email     string `form:"email" validate:"omitempty,max=254,email"`
}

func (f *Profile) Clean() {
	f.Username = strings.TrimSpace(f.Username)
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
}

// Decode parses the request body into dst, a pointer to a form struct.
func Decode(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	return decoder.Decode(dst, r.PostForm)
}

// Validate cleans dst and checks it. It returns nil when the form is valid.
func Validate(dst any) Errors {
	if c, ok := dst.(Cleaner); ok {
		c.Clean()
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{NonField: {err.Error()}}
	}

	errs := Errors{}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "email":
		return MsgInvalidEmail
	case "username":
		return MsgInvalidUsername
	case "passwordlen":
		return MsgPasswordTooLong
	case "max":
		value, _ := fe.Value().(string)
		return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).", fe.Param(), utf8.RuneCountInString(value))
	default:
		return "Enter a valid value."
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("passwordlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= passwords.MaxLength
	})
	return v
}
