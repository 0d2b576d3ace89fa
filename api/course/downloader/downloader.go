package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/coursedl/go-coursera/api/course"
	"github.com/coursedl/go-coursera/internal/download"
	"github.com/coursedl/go-coursera/internal/filter"
	"github.com/coursedl/go-coursera/internal/misc"
)

var log = misc.NewLogger("Course", 2)

// completeAfter is how long a course must sit unchanged on disk before a
// run reports it as probably complete.
const completeAfter = 30 * 24 * time.Hour

// DownloadListener is notified once per handled resource, including
// skipped ones. err is nil on success or skip.
type DownloadListener func(r course.Resource, toFilePath string, skipped bool, err error, curr, count int)

var doNothingListener DownloadListener = func(course.Resource, string, bool, error, int, int) {
	// Substitution when the listener is passed as nil in Run.
}

// Options for one batch run.
type Options struct {
	Rules     filter.Rules
	Overwrite bool
}

// CourseDownloader walks a resolved syllabus and downloads every resource
// that survives the filter rules into a course named directory tree.
// Resources are fetched sequentially; one failure never aborts the run.
type CourseDownloader struct {
	dl       download.Downloader
	syllabus *course.Syllabus
	folder   string
	opts     Options

	failedURLs []string
	downloaded int
	skipped    int
}

func New(dl download.Downloader, syl *course.Syllabus, folder string, opts Options) *CourseDownloader {
	return &CourseDownloader{
		dl:       dl,
		syllabus: syl,
		folder:   folder,
		opts:     opts,
	}
}

// Count returns how many resources survive the filter rules.
func (d *CourseDownloader) Count() (n int) {
	d.syllabus.EachResource(func(_ course.Module, _ course.Section, _ course.Lecture, r course.Resource) bool {
		if !d.opts.Rules.Excludes(r.Format) {
			n++
		}
		return true
	})
	return n
}

// FailedURLs lists the resources that could not be downloaded in the last
// Run, in walk order.
func (d *CourseDownloader) FailedURLs() []string {
	return d.failedURLs
}

func (d *CourseDownloader) Downloaded() int {
	return d.downloaded
}

func (d *CourseDownloader) Skipped() int {
	return d.skipped
}

// Run downloads the filtered syllabus. completed reports whether nothing
// under the course directory changed for 30 days, a sign the course run
// is probably over. The only fatal error is failing to create the course
// output directory.
func (d *CourseDownloader) Run(listener DownloadListener) (completed bool, err error) {
	if listener == nil {
		listener = doNothingListener
	}
	d.failedURLs = nil
	d.downloaded = 0
	d.skipped = 0

	courseDir := filepath.Join(d.folder, misc.CleanFilename(d.syllabus.Slug))
	if err = os.MkdirAll(courseDir, 0755); err != nil {
		return false, errors.Wrap(err, "Create folder ["+courseDir+"] failed")
	}

	count := d.Count()
	curr := 0
	var lastUpdate time.Time

	for mIdx, m := range d.syllabus.Modules {
		moduleDir := filepath.Join(courseDir, numbered(mIdx+1, m.Slug))
		for sIdx, s := range m.Sections {
			sectionDir := filepath.Join(moduleDir, numbered(sIdx+1, s.Slug))
			for _, lec := range s.Lectures {
				for _, r := range d.opts.Rules.Apply(lec.Resources) {
					curr++
					target := filepath.Join(sectionDir, misc.CleanFilename(r.Name))

					if !d.opts.Overwrite && misc.IsFileExists(target) {
						log.Trace("%s already downloaded", target)
						d.skipped++
						if st, serr := os.Stat(target); serr == nil && st.ModTime().After(lastUpdate) {
							lastUpdate = st.ModTime()
						}
						listener(r, target, true, nil, curr, count)
						continue
					}

					_, _, derr := d.dl.Download(r.URL, target)
					if derr != nil {
						log.Error("Download %s failed: %v.", r.URL, derr)
						d.failedURLs = append(d.failedURLs, r.URL)
					} else {
						d.downloaded++
						lastUpdate = time.Now()
					}
					listener(r, target, false, derr, curr, count)
				}
			}
		}
	}

	completed = !lastUpdate.IsZero() && time.Since(lastUpdate) > completeAfter
	if completed {
		log.Info("Course %s looks complete: nothing newer than %v", d.syllabus.Slug, completeAfter)
	}
	return completed, nil
}

func numbered(n int, slug string) string {
	return fmt.Sprintf("%02d_%s", n, misc.CleanFilename(slug))
}
