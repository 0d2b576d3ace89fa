package download

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/coursedl/go-coursera/internal/misc"
)

var log = misc.NewLogger("Down", 2)

// Kind classifies a download failure.
type Kind int

const (
	Network Kind = iota + 1
	Disk
	StaleSession
)

// Error is the failure of a single resource download.
type Error struct {
	Kind  Kind
	URL   string
	cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Disk:
		return "download " + e.URL + ": disk error: " + e.cause.Error()
	case StaleSession:
		return "download " + e.URL + ": session no longer valid: " + e.cause.Error()
	default:
		return "download " + e.URL + ": network error: " + e.cause.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

const maxRetries = 3

// HTTPDownload streams one URL at a time to disk through the session
// client, so every request carries the authentication cookies.
type HTTPDownload struct {
	client *resty.Client

	// NewBackOff builds the retry policy for one download. Only the
	// initial request is retried; a transfer that breaks mid-body leaves
	// the partial file as-is and fails without retry.
	NewBackOff func() backoff.BackOff
}

func New(client *resty.Client) *HTTPDownload {
	if client == nil {
		client = resty.New().SetTimeout(5 * time.Minute)
	}
	return &HTTPDownload{
		client: client,
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
		},
	}
}

var _ Downloader = &HTTPDownload{}

func (h *HTTPDownload) Download(URL string, toFilePath string) (httpStatusCode int, filesize int64, err error) {
	attempt := 0
	op := func() error {
		attempt++

		resp, rerr := h.client.R().SetDoNotParseResponse(true).Get(URL)
		if rerr != nil {
			log.Warn("[%d] Download %s failed: %v.", attempt, URL, rerr)
			return &Error{Kind: Network, URL: URL, cause: rerr}
		}
		body := resp.RawBody()
		defer func() {
			_ = body.Close()
		}()

		httpStatusCode = resp.StatusCode()
		if httpStatusCode != http.StatusOK {
			herr := fmt.Errorf("http error %d:%s", httpStatusCode, resp.Status())
			log.Warn("[%d] Download %s failed %d:%s.", attempt, URL, httpStatusCode, resp.Status())

			switch {
			case httpStatusCode == http.StatusUnauthorized || httpStatusCode == http.StatusForbidden:
				return backoff.Permanent(&Error{Kind: StaleSession, URL: URL, cause: herr})
			case httpStatusCode >= 500:
				return &Error{Kind: Network, URL: URL, cause: herr}
			default:
				// 404 and other client errors will not improve on retry.
				return backoff.Permanent(&Error{Kind: Network, URL: URL, cause: herr})
			}
		}

		var serr error
		filesize, serr = saveBodyToDisk(body, toFilePath)
		if serr != nil {
			return backoff.Permanent(classifySaveError(URL, serr))
		}
		return nil
	}

	err = backoff.Retry(op, h.NewBackOff())
	return
}

func classifySaveError(URL string, err error) *Error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &Error{Kind: Disk, URL: URL, cause: err}
	}
	// Body read broke mid-transfer.
	return &Error{Kind: Network, URL: URL, cause: err}
}

func saveBodyToDisk(body io.ReadCloser, path string) (filesize int64, err error) {
	// Create dir if not exists
	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		err = errors.Wrap(err, "Create folder ["+dir+"] failed")
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0666)
	if err != nil {
		err = errors.Wrap(err, "Create file ["+path+"] failed")
		return
	}

	defer func() {
		_ = f.Close()
	}()
	filesize, err = io.Copy(f, body)
	if err != nil {
		err = errors.Wrap(err, "Saving resource ["+path+"] failed")
		return
	}

	return
}
