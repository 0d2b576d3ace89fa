package session

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/coursedl/go-coursera/internal/credentials"
	"github.com/coursedl/go-coursera/internal/misc"
)

const (
	// DefaultBaseURL is the platform root; endpoint paths below it are
	// platform specific and may change without notice.
	DefaultBaseURL = "https://www.coursera.org"

	loginPath = "/api/login/v3"

	defaultUserAgent = "go-coursera/1.0"
	defaultTimeout   = 5 * time.Minute
)

var log = misc.NewLogger("Auth", 2)

// Kind classifies an authentication failure.
type Kind int

const (
	BadCredentials Kind = iota + 1
	Network
	BadResponse
)

// AuthError is returned by Login. It is not retried automatically; the
// caller decides whether to re-prompt or abort.
type AuthError struct {
	Kind  Kind
	cause error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case BadCredentials:
		return "authentication failed: invalid credentials: " + e.cause.Error()
	case Network:
		return "authentication failed: network error: " + e.cause.Error()
	default:
		return "authentication failed: unexpected response: " + e.cause.Error()
	}
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// Options configure the session client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Session is the authenticated handle used by the lister and the
// downloader. It is read-only after a successful Login.
type Session struct {
	client  *resty.Client
	baseURL string
}

func New(opts Options) *Session {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)

	return &Session{
		client:  client,
		baseURL: opts.BaseURL,
	}
}

// Client exposes the resty client carrying the session cookies.
func (s *Session) Client() *resty.Client {
	return s.client
}

func (s *Session) BaseURL() string {
	return s.baseURL
}

// Login posts the credentials to the login endpoint with forged CSRF
// tokens and requires a CAUTH cookie afterwards. The reply may set it on
// an intermediate redirect, so the session jar is checked as well as the
// final response.
func (s *Session) Login(creds credentials.Credentials) error {
	// Start each attempt from a clean jar so cookies of a failed or
	// previous login never leak into this one.
	if jar, err := cookiejar.New(nil); err == nil {
		s.client.SetCookieJar(jar)
	}

	// The CSRF token pair is not validated server side beyond presence;
	// the cookie and header values only have to agree.
	csrfToken := randomString(20)
	csrf2Cookie := "csrf2_token_" + randomString(8)
	csrf2Token := randomString(24)

	log.Trace("Forging CSRF cookie %s", csrf2Cookie)

	resp, err := s.client.R().
		SetHeader("Cookie", fmt.Sprintf("csrftoken=%s; %s=%s", csrfToken, csrf2Cookie, csrf2Token)).
		SetHeader("X-CSRFToken", csrfToken).
		SetHeader("X-CSRF2-Cookie", csrf2Cookie).
		SetHeader("X-CSRF2-Token", csrf2Token).
		SetFormData(map[string]string{
			"email":      creds.Email,
			"password":   creds.Password,
			"webrequest": "true",
		}).
		Post(s.baseURL + loginPath)
	if err != nil {
		return &AuthError{Kind: Network, cause: err}
	}

	code := resp.StatusCode()
	switch {
	case code >= 400 && code < 500:
		return &AuthError{Kind: BadCredentials, cause: fmt.Errorf("http error %d:%s", code, resp.Status())}
	case code >= 500:
		return &AuthError{Kind: BadResponse, cause: fmt.Errorf("http error %d:%s", code, resp.Status())}
	}

	if !hasCookie(resp.Cookies(), "CAUTH") && !hasCookie(s.jarCookies(), "CAUTH") {
		return &AuthError{Kind: BadResponse, cause: errors.New("no CAUTH cookie in login reply")}
	}

	log.Info("Logged in as %s", creds.Email)
	return nil
}

// jarCookies returns the cookies the session jar holds for the platform
// host, including ones picked up on login redirects.
func (s *Session) jarCookies() []*http.Cookie {
	jar := s.client.GetClient().Jar
	if jar == nil {
		return nil
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil
	}
	return jar.Cookies(u)
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

const randomChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomChars[rand.Intn(len(randomChars))]
	}
	return string(b)
}
