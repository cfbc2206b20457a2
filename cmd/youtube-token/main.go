// Command youtube-token provisions the refresh token the ingest worker uploads
// with. It is run once by an operator; nothing is persisted.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"github.com/angelmondragon/guruji-backend/pkg/config"
	"github.com/angelmondragon/guruji-backend/pkg/env"
	"github.com/angelmondragon/guruji-backend/pkg/youtube"
)

const (
	defaultRedirectURL = "http://localhost"
	exchangeTimeout    = 30 * time.Second
	authState          = "guruji-youtube-token"
)

type codeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

func main() {
	_ = godotenv.Load()

	if missing := env.Missing(config.EnvYouTubeClientID, config.EnvYouTubeClientSecret); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "missing required environment: %s\n", strings.Join(missing, ", "))
		os.Exit(1)
	}
	conf := youtube.OAuthConfig(youtube.Credentials{
		ClientID:     env.Get(config.EnvYouTubeClientID, ""),
		ClientSecret: env.Get(config.EnvYouTubeClientSecret, ""),
		RedirectURL:  env.Get("GURUJI_YOUTUBE_REDIRECT_URL", defaultRedirectURL),
	})

	if err := run(context.Background(), conf, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "token exchange failed: %v\n", err)
		os.Exit(1)
	}
}

// run prompts on prompt, reads the code from in and writes only the refresh
// token to out.
func run(ctx context.Context, conf codeExchanger, in io.Reader, out, prompt io.Writer) error {
	authURL := conf.AuthCodeURL(authState,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	fmt.Fprintf(prompt, "Open this URL, approve access, then paste the code (or the full redirect URL):\n\n%s\n\ncode: ", authURL)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read code: %w", err)
	}
	code, err := extractCode(line)
	if err != nil {
		return err
	}

	exCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	token, err := conf.Exchange(exCtx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		return errors.New("no refresh token returned; revoke the app's access and retry so consent is shown again")
	}
	fmt.Fprintln(out, token.RefreshToken)
	return nil
}

// extractCode accepts either the bare code or the redirect URL carrying it.
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("authorization code is required")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	if e := u.Query().Get("error"); e != "" {
		return "", fmt.Errorf("consent denied: %s", e)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("redirect url has no code parameter")
	}
	return code, nil
}
