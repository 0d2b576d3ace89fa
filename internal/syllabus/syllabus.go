package syllabus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/coursedl/go-coursera/api/course"
	"github.com/coursedl/go-coursera/internal/misc"
	"github.com/coursedl/go-coursera/internal/session"
)

// Platform endpoints. These paths are platform specific and may change
// without notice.
const (
	membershipsPath   = "/api/memberships.v1?q=me&filter=current&includes=courseId&fields=courseId"
	openCoursePath    = "/api/opencourse.v1/course/%s?showLockedItems=true"
	lectureVideosPath = "/api/onDemandLectureVideos.v1/%s~%s?includes=video&fields=video.v1(sources,subtitles)"
	supplementsPath   = "/api/onDemandSupplements.v1/%s~%s?includes=asset&fields=openCourseAssets.v1(typeName,definition)"
)

var log = misc.NewLogger("List", 2)

// Error is a listing failure: page fetch, bad status or undecodable body.
type Error struct {
	URL   string
	cause error
}

func (e *Error) Error() string {
	return "listing " + e.URL + " failed: " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Options tune how lecture links are resolved.
type Options struct {
	// Resolution is the preferred video resolution ("540p"); when the
	// video does not offer it the best available source is used.
	Resolution string

	// SubtitleLang selects which subtitle track to include, if present.
	SubtitleLang string

	// CacheDir/UseCache enable the on-disk syllabus cache.
	CacheDir string
	UseCache bool
}

// Lister produces the downloadable resources of a course using the
// authenticated session. Items that need client side rendering (quizzes,
// exams, programming assignments) are not discoverable from the static
// syllabus and are skipped.
type Lister struct {
	client *resty.Client
	base   string
	opts   Options
}

func New(sess *session.Session, opts Options) *Lister {
	return &Lister{
		client: sess.Client(),
		base:   sess.BaseURL(),
		opts:   opts,
	}
}

type membershipsReply struct {
	Elements []struct {
		CourseID string `json:"courseId"`
	} `json:"elements"`
	Linked struct {
		Courses []struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
			Name string `json:"name"`
		} `json:"courses.v1"`
	} `json:"linked"`
}

// ListCourses returns the enrolled courses in membership order.
func (l *Lister) ListCourses() ([]course.Course, error) {
	var reply membershipsReply
	if err := l.getJSON(l.base+membershipsPath, &reply); err != nil {
		return nil, err
	}

	byID := make(map[string]course.Course, len(reply.Linked.Courses))
	for _, c := range reply.Linked.Courses {
		byID[c.ID] = course.Course{ID: c.ID, Slug: c.Slug, Name: c.Name}
	}

	courses := make([]course.Course, 0, len(reply.Elements))
	for _, m := range reply.Elements {
		if c, ok := byID[m.CourseID]; ok {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

type openCourseReply struct {
	ID             string `json:"id"`
	Slug           string `json:"slug"`
	CourseMaterial struct {
		Elements []jsonModule `json:"elements"`
	} `json:"courseMaterial"`
}

type jsonModule struct {
	Slug     string        `json:"slug"`
	Elements []jsonSection `json:"elements"`
}

type jsonSection struct {
	ID       string        `json:"id"`
	Slug     string        `json:"slug"`
	Elements []jsonLecture `json:"elements"`
}

type jsonLecture struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Content struct {
		TypeName   string `json:"typeName"`
		Definition struct {
			VideoID string `json:"videoId"`
		} `json:"definition"`
	} `json:"content"`
}

// Syllabus fetches and resolves the full course tree. errOccurred reports
// that at least one lecture failed to resolve; the walk continues past
// such lectures.
func (l *Lister) Syllabus(slug string) (syl *course.Syllabus, errOccurred bool, err error) {
	if l.opts.UseCache {
		if cached, ok := l.loadCache(slug); ok {
			log.Info("Using cached syllabus for %s", slug)
			return cached, false, nil
		}
	}

	var reply openCourseReply
	url := l.base + fmt.Sprintf(openCoursePath, slug)
	if err = l.getJSON(url, &reply); err != nil {
		return nil, false, err
	}

	syl = &course.Syllabus{CourseID: reply.ID, Slug: reply.Slug}
	for _, m := range reply.CourseMaterial.Elements {
		module := course.Module{Slug: m.Slug}
		log.Trace("Processing module %s", m.Slug)

		for _, s := range m.Elements {
			section := course.Section{ID: s.ID, Slug: s.Slug}
			for _, item := range s.Elements {
				lecture, lerr := l.resolveLecture(reply.ID, item)
				if lerr != nil {
					log.Warn("Resolving lecture %s failed: %v.", item.Slug, lerr)
					errOccurred = true
					continue
				}
				if len(lecture.Resources) > 0 {
					section.Lectures = append(section.Lectures, lecture)
				}
			}
			if len(section.Lectures) > 0 {
				module.Sections = append(module.Sections, section)
			}
		}
		if len(module.Sections) > 0 {
			syl.Modules = append(syl.Modules, module)
		}
	}

	if l.opts.UseCache && !errOccurred {
		l.saveCache(syl)
	}
	return syl, errOccurred, nil
}

func (l *Lister) resolveLecture(courseID string, item jsonLecture) (course.Lecture, error) {
	lecture := course.Lecture{ID: item.ID, Slug: item.Slug, TypeName: item.Content.TypeName}

	switch item.Content.TypeName {
	case "lecture":
		resources, err := l.videoResources(courseID, item)
		if err != nil {
			return lecture, err
		}
		lecture.Resources = resources
	case "supplement":
		resources, err := l.supplementResources(courseID, item)
		if err != nil {
			return lecture, err
		}
		lecture.Resources = resources
	default:
		// Quizzes, exams and programming assignments render client side
		// and are not discoverable here.
		log.Trace("Skipping unsupported item %s (%s)", item.Slug, item.Content.TypeName)
	}

	return lecture, nil
}

type lectureVideosReply struct {
	Linked struct {
		Videos []struct {
			Sources struct {
				ByResolution map[string]struct {
					MP4VideoURL string `json:"mp4VideoUrl"`
				} `json:"byResolution"`
			} `json:"sources"`
			Subtitles map[string]string `json:"subtitles"`
		} `json:"onDemandVideos.v1"`
	} `json:"linked"`
}

func (l *Lister) videoResources(courseID string, item jsonLecture) ([]course.Resource, error) {
	var reply lectureVideosReply
	url := l.base + fmt.Sprintf(lectureVideosPath, courseID, item.Content.Definition.VideoID)
	if err := l.getJSON(url, &reply); err != nil {
		return nil, err
	}
	if len(reply.Linked.Videos) == 0 {
		return nil, nil
	}
	video := reply.Linked.Videos[0]

	var resources []course.Resource
	if videoURL := pickResolution(video.Sources.ByResolution, l.opts.Resolution); videoURL != "" {
		resources = append(resources, course.Resource{
			Name:   item.Slug + "." + formatOrDefault(videoURL, "mp4"),
			URL:    videoURL,
			Format: formatOrDefault(videoURL, "mp4"),
		})
	}

	if l.opts.SubtitleLang != "" {
		if subURL, ok := video.Subtitles[l.opts.SubtitleLang]; ok {
			resources = append(resources, course.Resource{
				Name:   item.Slug + "." + l.opts.SubtitleLang + ".srt",
				URL:    l.absoluteURL(subURL),
				Format: "srt",
			})
		}
	}
	return resources, nil
}

type supplementsReply struct {
	Linked struct {
		Assets []struct {
			TypeName   string `json:"typeName"`
			Definition struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"definition"`
		} `json:"openCourseAssets.v1"`
	} `json:"linked"`
}

func (l *Lister) supplementResources(courseID string, item jsonLecture) ([]course.Resource, error) {
	var reply supplementsReply
	url := l.base + fmt.Sprintf(supplementsPath, courseID, item.ID)
	if err := l.getJSON(url, &reply); err != nil {
		return nil, err
	}

	var resources []course.Resource
	for _, asset := range reply.Linked.Assets {
		if asset.TypeName != "asset" || asset.Definition.URL == "" {
			continue
		}
		name := asset.Definition.Name
		if name == "" {
			name = item.Slug
		}
		format := misc.FormatOf(name)
		if format == "" {
			format = misc.FormatOf(asset.Definition.URL)
		}
		resources = append(resources, course.Resource{
			Name:   misc.CleanFilename(name),
			URL:    l.absoluteURL(asset.Definition.URL),
			Format: format,
		})
	}
	return resources, nil
}

// pickResolution returns the source for the wanted resolution, falling
// back to the highest one offered.
func pickResolution(byResolution map[string]struct {
	MP4VideoURL string `json:"mp4VideoUrl"`
}, wanted string) string {
	if src, ok := byResolution[wanted]; ok && src.MP4VideoURL != "" {
		return src.MP4VideoURL
	}

	resolutions := make([]string, 0, len(byResolution))
	for r := range byResolution {
		resolutions = append(resolutions, r)
	}
	sort.Slice(resolutions, func(i, j int) bool {
		return resolutionValue(resolutions[i]) > resolutionValue(resolutions[j])
	})
	for _, r := range resolutions {
		if byResolution[r].MP4VideoURL != "" {
			return byResolution[r].MP4VideoURL
		}
	}
	return ""
}

func resolutionValue(r string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(r, "p"))
	return n
}

func formatOrDefault(url, fallback string) string {
	if f := misc.FormatOf(url); f != "" {
		return f
	}
	return fallback
}

func (l *Lister) absoluteURL(url string) string {
	if strings.HasPrefix(url, "/") {
		return l.base + url
	}
	return url
}

func (l *Lister) getJSON(url string, out interface{}) error {
	resp, err := l.client.R().Get(url)
	if err != nil {
		return &Error{URL: url, cause: err}
	}
	if resp.StatusCode() != 200 {
		return &Error{URL: url, cause: fmt.Errorf("http error %d:%s", resp.StatusCode(), resp.Status())}
	}
	log.Trace("Downloaded %s (%d bytes)", url, len(resp.Body()))
	if err = json.Unmarshal(resp.Body(), out); err != nil {
		return &Error{URL: url, cause: err}
	}
	return nil
}
