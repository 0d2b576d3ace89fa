package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/coursedl/go-coursera/internal/filter"
)

var resolutionRegx = regexp.MustCompile(`^\d{3,4}p$`)

var defaults = map[string]interface{}{
	"output":         "downloaded",
	"credentials":    "coursera.pass",
	"resolution":     "540p",
	"subtitle-lang":  "en",
	"exclude":        "",
	"overwrite":      false,
	"cache-syllabus": false,
	"verbose":        false,
}

// Options is the validated run configuration, merged from built-in
// defaults, an optional YAML config file and the command line.
type Options struct {
	OutputDir       string
	CredentialsFile string
	Resolution      string
	SubtitleLang    string
	Rules           filter.Rules
	ExcludeSet      bool
	Overwrite       bool
	CacheSyllabus   bool
	CacheDir        string
	Verbose         bool
}

// RegisterFlags declares the command line surface on the given flag set.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional YAML config file")
	fs.String("output", defaults["output"].(string), "destination directory for downloaded courses")
	fs.String("credentials", defaults["credentials"].(string), "path of the encrypted credentials file")
	fs.String("resolution", defaults["resolution"].(string), "preferred video resolution, like: 540p, 720p")
	fs.String("subtitle-lang", defaults["subtitle-lang"].(string), "subtitle language to download")
	fs.String("exclude", defaults["exclude"].(string), "comma separated file formats to skip, like: mp4,srt (prompted when omitted)")
	fs.Bool("overwrite", defaults["overwrite"].(bool), "re-download files that already exist")
	fs.Bool("cache-syllabus", defaults["cache-syllabus"].(bool), "cache the parsed syllabus between runs")
	fs.Bool("verbose", defaults["verbose"].(bool), "verbose output trace log")
}

// Load merges defaults, the optional config file and the parsed flags
// into validated Options. The output directory is created eagerly; its
// failure is the one unrecoverable configuration error.
func Load(fs *pflag.FlagSet) (*Options, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if cfgPath, _ := fs.GetString("config"); cfgPath != "" {
		if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "load config file ["+cfgPath+"]")
		}
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, errors.Wrap(err, "load flags")
	}

	opt := &Options{
		CredentialsFile: k.String("credentials"),
		Resolution:      k.String("resolution"),
		SubtitleLang:    k.String("subtitle-lang"),
		Rules:           filter.ParseRules(k.String("exclude")),
		Overwrite:       k.Bool("overwrite"),
		CacheSyllabus:   k.Bool("cache-syllabus"),
		CacheDir:        defaultCacheDir(),
		Verbose:         k.Bool("verbose"),
	}
	opt.ExcludeSet = k.String("exclude") != "" || fs.Changed("exclude")

	if !resolutionRegx.MatchString(opt.Resolution) {
		return nil, fmt.Errorf("invalid resolution value: %s", opt.Resolution)
	}

	var err error
	if opt.OutputDir, err = filepath.Abs(k.String("output")); err != nil {
		return nil, fmt.Errorf("invalid destination folder")
	}
	if err = os.MkdirAll(opt.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create destination folder failed: %v", err)
	}

	return opt, nil
}

func defaultCacheDir() string {
	return filepath.Join(os.TempDir(), "go-coursera-cache")
}
