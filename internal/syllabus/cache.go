package syllabus

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/coursedl/go-coursera/api/course"
)

// The resolved syllabus is cached per course as xz compressed JSON, so a
// rerun skips the many per-lecture API calls. A corrupt cache file is
// ignored and refetched.

func (l *Lister) cachePath(slug string) string {
	return filepath.Join(l.opts.CacheDir, slug+"-syllabus.json.xz")
}

func (l *Lister) loadCache(slug string) (*course.Syllabus, bool) {
	f, err := os.Open(l.cachePath(slug))
	if err != nil {
		return nil, false
	}
	defer func() {
		_ = f.Close()
	}()

	r, err := xz.NewReader(f)
	if err != nil {
		log.Warn("Syllabus cache for %s unreadable: %v.", slug, err)
		return nil, false
	}

	var syl course.Syllabus
	if err = json.NewDecoder(r).Decode(&syl); err != nil {
		log.Warn("Syllabus cache for %s corrupt: %v.", slug, err)
		return nil, false
	}
	return &syl, true
}

func (l *Lister) saveCache(syl *course.Syllabus) {
	if err := os.MkdirAll(l.opts.CacheDir, 0755); err != nil {
		log.Warn("Create cache folder failed: %v.", err)
		return
	}

	f, err := os.OpenFile(l.cachePath(syl.Slug), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		log.Warn("Create syllabus cache failed: %v.", err)
		return
	}
	defer func() {
		_ = f.Close()
	}()

	w, err := xz.NewWriter(f)
	if err != nil {
		log.Warn("Compress syllabus cache failed: %v.", err)
		return
	}
	if err = json.NewEncoder(w).Encode(syl); err != nil {
		log.Warn("Write syllabus cache failed: %v.", err)
		return
	}
	if err = w.Close(); err != nil {
		log.Warn("Flush syllabus cache failed: %v.", err)
	}
}
