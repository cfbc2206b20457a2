package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	WatchURLPrefix   = "https://www.youtube.com/watch?v="
	DefaultTitle     = "Lesson Video"
	FixedDescription = "Educational lesson video from The GuruJI Classes"
	// CategoryEducation is the host's "Education" category.
	CategoryEducation = "27"
	PrivacyUnlisted   = "unlisted"
)

// FixedTags are attached to every lesson upload.
var FixedTags = []string{"education", "lesson", "tutorial"}

// Metadata is the snippet/status pair sent with an upload.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
	MadeForKids bool
}

// LessonMetadata builds the fixed lesson upload metadata; an empty title
// falls back to DefaultTitle.
func LessonMetadata(title string) Metadata {
	if title == "" {
		title = DefaultTitle
	}
	return Metadata{
		Title:       title,
		Description: FixedDescription,
		Tags:        append([]string(nil), FixedTags...),
		CategoryID:  CategoryEducation,
		Privacy:     PrivacyUnlisted,
		MadeForKids: false,
	}
}

func WatchURL(videoID string) string {
	return WatchURLPrefix + videoID
}

// Uploader submits a video stream and returns the host's video id.
type Uploader interface {
	Upload(ctx context.Context, meta Metadata, media io.Reader) (string, error)
}

// Authenticator turns credentials into an Uploader.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Uploader, error)
}

// OAuthConfig returns the consent/refresh configuration for the upload scope.
func OAuthConfig(creds Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURL,
		Scopes:       []string{yt.YoutubeUploadScope},
		Endpoint:     google.Endpoint,
	}
}

// OAuthAuthenticator authenticates with a stored refresh token. The access
// token is minted lazily on the first API call.
type OAuthAuthenticator struct {
	// Options are appended after the OAuth HTTP client, e.g. a test endpoint.
	Options []option.ClientOption
}

func (a OAuthAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Uploader, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	token := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-1 * time.Minute),
	}
	httpClient := OAuthConfig(creds).Client(ctx, token)

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, a.Options...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating youtube service: %w", err)
	}
	return &Client{service: svc}, nil
}

// Client uploads videos with an authenticated YouTube service.
type Client struct {
	service *yt.Service
}

func NewClient(svc *yt.Service) *Client {
	return &Client{service: svc}
}

func (c *Client) Upload(ctx context.Context, meta Metadata, media io.Reader) (string, error) {
	if c == nil || c.service == nil {
		return "", errors.New("youtube client not initialized")
	}
	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           meta.Privacy,
			SelfDeclaredMadeForKids: meta.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	resp, err := c.service.Videos.
		Insert([]string{"snippet", "status"}, video).
		Media(media).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("youtube videos.insert: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return "", errors.New("youtube videos.insert returned no video id")
	}
	return resp.Id, nil
}
