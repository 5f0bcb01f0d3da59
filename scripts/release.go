package main

import (
	"archive/tar"
	"compress/gzip"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var semverRegex = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)$`)

type SemanticVersion struct {
	Major int
	Minor int
	Patch int
}

func ParseSemVer(s string) (SemanticVersion, error) {
	m := semverRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return SemanticVersion{}, fmt.Errorf("invalid semantic version: %q", s)
	}

	var sv SemanticVersion
	var err error
	if sv.Major, err = strconv.Atoi(m[1]); err != nil {
		return sv, err
	}
	if sv.Minor, err = strconv.Atoi(m[2]); err != nil {
		return sv, err
	}
	if sv.Patch, err = strconv.Atoi(m[3]); err != nil {
		return sv, err
	}
	return sv, nil
}

// Bump returns the next version for part, or parses part as an exact version.
func (sv SemanticVersion) Bump(part string) (SemanticVersion, error) {
	switch part {
	case "major":
		return SemanticVersion{Major: sv.Major + 1}, nil
	case "minor":
		return SemanticVersion{Major: sv.Major, Minor: sv.Minor + 1}, nil
	case "patch":
		return SemanticVersion{Major: sv.Major, Minor: sv.Minor, Patch: sv.Patch + 1}, nil
	default:
		return ParseSemVer(part)
	}
}

func (sv SemanticVersion) String() string {
	return fmt.Sprintf("v%d.%d.%d", sv.Major, sv.Minor, sv.Patch)
}

// Target is one cross-compiled build of the daemon.
type Target struct {
	GOOS   string
	GOARCH string
	GOARM  string
}

func (t Target) Name() string {
	name := t.GOOS + "-" + t.GOARCH
	if t.GOARM != "" {
		name += "v" + t.GOARM
	}
	return name
}

// Pi Zero/1 are armv6, everything newer runs the arm64 image.
var targets = []Target{
	{GOOS: "linux", GOARCH: "arm", GOARM: "6"},
	{GOOS: "linux", GOARCH: "arm64"},
}

// ldflags stamps the values printed by -version.
func ldflags(version, commit string, built time.Time) string {
	return strings.Join([]string{
		"-s", "-w",
		"-X main.version=" + version,
		"-X main.commitHash=" + commit,
		"-X main.buildUnixTimestamp=" + strconv.FormatInt(built.Unix(), 10),
	}, " ")
}

func run(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

func build(t Target, flags, dist string) (string, error) {
	bin := filepath.Join(dist, "gpiocount-"+t.Name(), "gpiocount")

	cmd := exec.Command("go", "build", "-trimpath", "-ldflags", flags, "-o", bin, ".")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOOS="+t.GOOS, "GOARCH="+t.GOARCH)
	if t.GOARM != "" {
		cmd.Env = append(cmd.Env, "GOARM="+t.GOARM)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build %s: %w", t.Name(), err)
	}
	return bin, nil
}

// archive writes bin and the service unit into a .tgz next to it.
func archive(bin, version string, t Target) (string, error) {
	out := filepath.Join(filepath.Dir(filepath.Dir(bin)), fmt.Sprintf("gpiocount-%s-%s.tgz", version, t.Name()))
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, src := range []string{bin, "gpiocount.service"} {
		if err := addFile(tw, src); err != nil {
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	return out, gz.Close()
}

func addFile(tw *tar.Writer, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(src)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func release(bump string, publish bool) error {
	current, err := run("git", "describe", "--tags", "--abbrev=0")
	if err != nil {
		return fmt.Errorf("git describe: %w", err)
	}
	cv, err := ParseSemVer(current)
	if err != nil {
		return err
	}
	next, err := cv.Bump(bump)
	if err != nil {
		return err
	}
	commit, err := run("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		return fmt.Errorf("git rev-parse: %w", err)
	}
	log.Info().Str("current", cv.String()).Str("next", next.String()).Str("commit", commit).Msg("Cutting release")

	const dist = "dist"
	if err := os.RemoveAll(dist); err != nil {
		return err
	}

	flags := ldflags(next.String(), commit, time.Now())
	var archives []string
	for _, t := range targets {
		bin, err := build(t, flags, dist)
		if err != nil {
			return err
		}
		tgz, err := archive(bin, next.String(), t)
		if err != nil {
			return fmt.Errorf("archive %s: %w", t.Name(), err)
		}
		log.Info().Str("target", t.Name()).Str("archive", tgz).Msg("Built")
		archives = append(archives, tgz)
	}

	if !publish {
		log.Info().Msg("Skipping publish")
		return nil
	}

	args := append([]string{"release", "create", next.String(), "--generate-notes"}, archives...)
	cmd := exec.Command("gh", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	action := flag.String("action", "", "Action to run (release)")
	bump := flag.String("version", "", "Semver part to bump (major, minor, patch) or an exact version (e.g. v1.2.3)")
	publish := flag.Bool("publish", false, "Create a GitHub release from the archives")
	flag.Parse()

	switch *action {
	case "release":
		if *bump == "" {
			log.Fatal().Msg("-version is required with release")
		}
		if err := release(*bump, *publish); err != nil {
			log.Fatal().Err(err).Msg("Release failed")
		}
	case "":
		log.Fatal().Msg("An action is required")
	default:
		log.Fatal().Str("action", *action).Msg("Invalid action")
	}
}
