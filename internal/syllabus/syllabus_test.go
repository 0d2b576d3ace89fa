package syllabus

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursedl/go-coursera/api/course"
	"github.com/coursedl/go-coursera/internal/session"
)

const membershipsBody = `{
	"elements": [{"courseId": "c2"}, {"courseId": "c1"}],
	"linked": {"courses.v1": [
		{"id": "c1", "slug": "algorithms", "name": "Algorithms"},
		{"id": "c2", "slug": "macroeconomics", "name": "Principles of Macroeconomics"}
	]}
}`

const openCourseBody = `{
	"id": "c1",
	"slug": "algorithms",
	"courseMaterial": {"elements": [
		{"slug": "module-1", "elements": [
			{"id": "sec1", "slug": "week-1", "elements": [
				{"id": "lec1", "slug": "intro", "content": {"typeName": "lecture", "definition": {"videoId": "v1"}}},
				{"id": "sup1", "slug": "syllabus-notes", "content": {"typeName": "supplement"}},
				{"id": "quiz1", "slug": "week-1-quiz", "content": {"typeName": "quiz"}}
			]}
		]}
	]}
}`

const lectureVideosBody = `{
	"linked": {"onDemandVideos.v1": [{
		"sources": {"byResolution": {
			"360p": {"mp4VideoUrl": "https://media.test/v1_360p.mp4"},
			"540p": {"mp4VideoUrl": "https://media.test/v1_540p.mp4"}
		}},
		"subtitles": {"en": "/api/subtitles/v1/en.srt"}
	}]}
}`

const supplementsBody = `{
	"linked": {"openCourseAssets.v1": [
		{"typeName": "asset", "definition": {"name": "lecture notes.pdf", "url": "https://media.test/notes.pdf"}},
		{"typeName": "cml", "definition": {}}
	]}
}`

type fixtureServer struct {
	*httptest.Server
	requests map[string]int
}

func newFixtureServer(t *testing.T) *fixtureServer {
	fs := &fixtureServer{requests: map[string]int{}}

	mux := http.NewServeMux()
	serve := func(pattern, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			fs.requests[pattern]++
			_, _ = fmt.Fprint(w, body)
		})
	}
	serve("/api/memberships.v1", membershipsBody)
	serve("/api/opencourse.v1/course/algorithms", openCourseBody)
	serve("/api/onDemandLectureVideos.v1/c1~v1", lectureVideosBody)
	serve("/api/onDemandSupplements.v1/c1~sup1", supplementsBody)
	mux.HandleFunc("/api/opencourse.v1/course/empty-course", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"id": "c9", "slug": "empty-course", "courseMaterial": {"elements": []}}`)
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestLister(t *testing.T, baseURL string, opts Options) *Lister {
	return New(session.New(session.Options{BaseURL: baseURL}), opts)
}

func TestListCourses(t *testing.T) {
	srv := newFixtureServer(t)
	l := newTestLister(t, srv.URL, Options{})

	courses, err := l.ListCourses()
	require.NoError(t, err)

	require.Len(t, courses, 2)
	assert.Equal(t, "macroeconomics", courses[0].Slug, "membership order preserved")
	assert.Equal(t, "algorithms", courses[1].Slug)
	assert.Equal(t, "Algorithms", courses[1].Name)
}

func TestSyllabus_happyPath(t *testing.T) {
	srv := newFixtureServer(t)
	l := newTestLister(t, srv.URL, Options{Resolution: "540p", SubtitleLang: "en"})

	syl, errOccurred, err := l.Syllabus("algorithms")
	require.NoError(t, err)
	assert.False(t, errOccurred)

	require.Len(t, syl.Modules, 1)
	require.Len(t, syl.Modules[0].Sections, 1)
	lectures := syl.Modules[0].Sections[0].Lectures
	require.Len(t, lectures, 2, "quiz item is silently skipped")

	resources := syl.Resources()
	require.Len(t, resources, 3)
	assert.Equal(t, course.Resource{
		Name:   "intro.mp4",
		URL:    "https://media.test/v1_540p.mp4",
		Format: "mp4",
	}, resources[0])
	assert.Equal(t, course.Resource{
		Name:   "intro.en.srt",
		URL:    srv.URL + "/api/subtitles/v1/en.srt",
		Format: "srt",
	}, resources[1])
	assert.Equal(t, course.Resource{
		Name:   "lecture_notes.pdf",
		URL:    "https://media.test/notes.pdf",
		Format: "pdf",
	}, resources[2])
}

func TestSyllabus_resolutionFallback(t *testing.T) {
	srv := newFixtureServer(t)
	l := newTestLister(t, srv.URL, Options{Resolution: "720p"})

	syl, _, err := l.Syllabus("algorithms")
	require.NoError(t, err)

	resources := syl.Resources()
	require.NotEmpty(t, resources)
	assert.Equal(t, "https://media.test/v1_540p.mp4", resources[0].URL,
		"falls back to the best available resolution")
}

func TestSyllabus_emptyCourse(t *testing.T) {
	srv := newFixtureServer(t)
	l := newTestLister(t, srv.URL, Options{})

	syl, errOccurred, err := l.Syllabus("empty-course")
	require.NoError(t, err)
	assert.False(t, errOccurred)
	assert.Empty(t, syl.Resources())
	assert.Zero(t, syl.ResourceCount())
}

func TestSyllabus_courseNotFound(t *testing.T) {
	srv := newFixtureServer(t)
	l := newTestLister(t, srv.URL, Options{})

	_, _, err := l.Syllabus("no-such-course")
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.True(t, strings.Contains(lerr.URL, "no-such-course"))
}

func TestSyllabus_lectureFailureDoesNotAbort(t *testing.T) {
	// Fixture server with a failing videos endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/opencourse.v1/course/algorithms", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, openCourseBody)
	})
	mux.HandleFunc("/api/onDemandLectureVideos.v1/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/onDemandSupplements.v1/c1~sup1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, supplementsBody)
	})
	failing := httptest.NewServer(mux)
	t.Cleanup(failing.Close)

	l := newTestLister(t, failing.URL, Options{})
	syl, errOccurred, err := l.Syllabus("algorithms")

	require.NoError(t, err)
	assert.True(t, errOccurred, "failed lecture is flagged")
	resources := syl.Resources()
	require.Len(t, resources, 1, "supplement still resolved")
	assert.Equal(t, "pdf", resources[0].Format)
}

func TestSyllabus_corruptCacheIsRefetched(t *testing.T) {
	srv := newFixtureServer(t)
	cacheDir := t.TempDir()
	opts := Options{Resolution: "540p", SubtitleLang: "en", UseCache: true, CacheDir: cacheDir}

	cachePath := filepath.Join(cacheDir, "algorithms-syllabus.json.xz")
	require.NoError(t, os.WriteFile(cachePath, []byte("not an xz stream"), 0644))

	l := newTestLister(t, srv.URL, opts)
	syl, errOccurred, err := l.Syllabus("algorithms")

	require.NoError(t, err)
	assert.False(t, errOccurred)
	assert.Equal(t, 1, srv.requests["/api/opencourse.v1/course/algorithms"],
		"garbage cache is ignored and the syllabus refetched")
	assert.Len(t, syl.Resources(), 3)

	// The refetch rewrites the cache; a later run reads it back fine.
	cached, _, err := newTestLister(t, srv.URL, opts).Syllabus("algorithms")
	require.NoError(t, err)
	assert.Equal(t, syl, cached)
	assert.Equal(t, 1, srv.requests["/api/opencourse.v1/course/algorithms"])
}

func TestSyllabus_cacheRoundTrip(t *testing.T) {
	srv := newFixtureServer(t)
	opts := Options{Resolution: "540p", SubtitleLang: "en", UseCache: true, CacheDir: t.TempDir()}

	first := newTestLister(t, srv.URL, opts)
	fetched, _, err := first.Syllabus("algorithms")
	require.NoError(t, err)
	fetchCount := srv.requests["/api/opencourse.v1/course/algorithms"]

	second := newTestLister(t, srv.URL, opts)
	cached, errOccurred, err := second.Syllabus("algorithms")
	require.NoError(t, err)
	assert.False(t, errOccurred)

	assert.Equal(t, fetched, cached)
	assert.Equal(t, fetchCount, srv.requests["/api/opencourse.v1/course/algorithms"],
		"second run served from cache")
}
