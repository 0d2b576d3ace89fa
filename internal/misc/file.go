package misc

import (
	"net/url"
	"os"
	"path"
	"strings"
)

func IsFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || os.IsExist(err)
}

// CleanFilename sanitizes a resource or slug name so it is safe to use as
// a file or directory name on common filesystems.
func CleanFilename(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		":", "-",
		"/", "-",
		"\\", "-",
		"\x00", "-",
		"\n", "",
	)
	s = replacer.Replace(s)
	s = strings.TrimRight(s, ".")
	return strings.ReplaceAll(s, " ", "_")
}

// CleanURL strips query and fragment parts so path.Base and path.Ext work
// on the remaining path.
func CleanURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// FormatOf guesses the file format from the URL path extension.
// Returns "" when the URL carries no extension.
func FormatOf(rawURL string) string {
	ext := path.Ext(path.Base(CleanURL(rawURL)))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
