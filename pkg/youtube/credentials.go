package youtube

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/guruji-backend/pkg/config"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Credentials are the three OAuth secrets needed to act as the platform's
// channel.
type Credentials struct {
	ClientID     string `env:"YOUTUBE_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"YOUTUBE_CLIENT_SECRET" validate:"required"`
	RefreshToken string `env:"YOUTUBE_REFRESH_TOKEN" validate:"required"`
	RedirectURL  string `env:"GURUJI_YOUTUBE_REDIRECT_URL"`
}

func CredentialsFromConfig(cfg config.YouTubeConfig) Credentials {
	return Credentials{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		RefreshToken: strings.TrimSpace(cfg.RefreshToken),
		RedirectURL:  strings.TrimSpace(cfg.RedirectURL),
	}
}

// MissingSecretsError names every absent secret by its environment variable.
type MissingSecretsError struct {
	Vars []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing video host secrets: %s", strings.Join(e.Vars, ", "))
}

// Validate reports a *MissingSecretsError when any required secret is empty.
func (c Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validating credentials: %w", err)
	}
	missing := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		missing = append(missing, fieldErr.Field())
	}
	sort.Strings(missing)
	return &MissingSecretsError{Vars: missing}
}
