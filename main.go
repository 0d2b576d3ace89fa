package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	clog "unknwon.dev/clog/v2"

	"github.com/coursedl/go-coursera/api/course"
	coursedl "github.com/coursedl/go-coursera/api/course/downloader"
	"github.com/coursedl/go-coursera/internal/config"
	"github.com/coursedl/go-coursera/internal/credentials"
	"github.com/coursedl/go-coursera/internal/download"
	"github.com/coursedl/go-coursera/internal/filter"
	"github.com/coursedl/go-coursera/internal/session"
	"github.com/coursedl/go-coursera/internal/syllabus"
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	opt, err := config.Load(pflag.CommandLine)
	if err != nil {
		fmt.Println("--------------------------------------------")
		fmt.Printf("Error: %s\n", err)
		fmt.Println("--------------------------------------------")
		fmt.Println("Usage:")
		pflag.PrintDefaults()
		return
	}

	if opt.Verbose {
		_ = clog.NewConsole(0, clog.ConsoleConfig{Level: clog.LevelTrace})
	} else {
		_ = clog.NewConsole(0, clog.ConsoleConfig{Level: clog.LevelInfo})
	}
	defer clog.Stop()

	fmt.Printf("      Output: %s\n", opt.OutputDir)
	fmt.Printf(" Credentials: %s\n", opt.CredentialsFile)
	fmt.Printf("  Resolution: %s\n", opt.Resolution)
	fmt.Printf("   Subtitles: %s\n", opt.SubtitleLang)
	fmt.Printf("   Overwrite: %t\n", opt.Overwrite)

	if err = run(opt); err != nil {
		clog.Error("%v", err)
		clog.Stop()
		os.Exit(1)
	}
}

func run(opt *config.Options) error {
	sess, err := login(credentials.NewStore(opt.CredentialsFile))
	if err != nil {
		return err
	}

	lister := syllabus.New(sess, syllabus.Options{
		Resolution:   opt.Resolution,
		SubtitleLang: opt.SubtitleLang,
		CacheDir:     opt.CacheDir,
		UseCache:     opt.CacheSyllabus,
	})

	courses, err := lister.ListCourses()
	if err != nil {
		return errors.Wrap(err, "listing enrolled courses")
	}
	if len(courses) == 0 {
		fmt.Println("No enrolled courses found.")
		return nil
	}

	chosen := pickCourse(courses)
	fmt.Printf("\nYou have chosen: %s\n\n", chosen.Name)

	rules := opt.Rules
	if !opt.ExcludeSet {
		line := prompt(`Which format files do you want to ignore? e.g.: "mp4, pdf, srt": `)
		rules = filter.ParseRules(line)
	}

	syl, errOccurred, err := lister.Syllabus(chosen.Slug)
	if err != nil {
		return errors.Wrap(err, "fetching syllabus for ["+chosen.Slug+"]")
	}

	cd := coursedl.New(download.New(sess.Client()), syl, opt.OutputDir, coursedl.Options{
		Rules:     rules,
		Overwrite: opt.Overwrite,
	})

	completed, err := cd.Run(func(r course.Resource, path string, skipped bool, derr error, curr, count int) {
		switch {
		case derr != nil:
			fmt.Printf("[%d/%d] FAILED  %s: %v\n", curr, count, r.Name, derr)
		case skipped:
			fmt.Printf("[%d/%d] skipped %s\n", curr, count, r.Name)
		default:
			fmt.Printf("[%d/%d] saved   %s\n", curr, count, path)
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nDownloaded: %d  Skipped: %d  Failed: %d\n",
		cd.Downloaded(), cd.Skipped(), len(cd.FailedURLs()))
	if len(cd.FailedURLs()) > 0 {
		fmt.Println("Failed URLs:")
		for _, u := range cd.FailedURLs() {
			fmt.Println("  " + u)
		}
	}
	if errOccurred {
		fmt.Println("Some lectures could not be parsed; their resources were skipped.")
	}
	if completed {
		fmt.Println("Course probably complete: nothing new in 30 days.")
	}
	return nil
}

// login loads stored credentials (prompting on first run or corrupt file)
// and authenticates. Bad credentials get one interactive retry.
func login(store *credentials.Store) (*session.Session, error) {
	creds, err := store.Load()
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		fmt.Println("One time setup of user and password.")
		if creds, err = promptAndSave(store); err != nil {
			return nil, err
		}
	case errors.Is(err, credentials.ErrCorrupt):
		fmt.Println("Credentials file is unreadable, please re-enter.")
		if creds, err = promptAndSave(store); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	sess := session.New(session.Options{})
	err = sess.Login(creds)

	var authErr *session.AuthError
	if errors.As(err, &authErr) && authErr.Kind == session.BadCredentials {
		fmt.Println("Login rejected, please re-enter your credentials.")
		if creds, err = promptAndSave(store); err != nil {
			return nil, err
		}
		err = sess.Login(creds)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func promptAndSave(store *credentials.Store) (credentials.Credentials, error) {
	creds, err := credentials.Prompt()
	if err != nil {
		return credentials.Credentials{}, err
	}
	if err = store.Save(creds); err != nil {
		return credentials.Credentials{}, err
	}
	fmt.Printf("Credentials saved to %s. Delete the file to change them.\n", store.Path())
	return creds, nil
}

func pickCourse(courses []course.Course) course.Course {
	fmt.Println("Enrolled courses:")
	for i, c := range courses {
		fmt.Printf("  [%d] %s\n", i+1, c.Name)
	}

	for {
		line := prompt("Please pick a course number: ")
		pick, err := strconv.Atoi(line)
		if err == nil && pick >= 1 && pick <= len(courses) {
			return courses[pick-1]
		}
	}
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(msg string) string {
	fmt.Print(msg)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}
