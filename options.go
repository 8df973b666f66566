package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/excludefs/excludefs/fs"
)

// Options holds the typed mount configuration assembled from the
// -o key=val option string.
type Options struct {
	Mountpoint string

	Root     string
	CacheDir string
	Patterns []string

	UID int
	GID int

	Foreground          bool
	NoThreads           bool
	OverwriteRenameDest bool

	SymlinkCreationWindows string

	Debug        bool
	FuseDebug    bool
	LogInFile    string
	LogInConsole bool
	LogInSyslog  bool

	Rellinks bool
}

// defaultOptions returns the per-platform defaults.
func defaultOptions() *Options {
	opts := &Options{
		UID:                 -1,
		GID:                 -1,
		Foreground:          true,
		NoThreads:           true,
		OverwriteRenameDest: runtime.GOOS != "windows",
		Rellinks:            runtime.GOOS == "windows",
		LogInConsole:        true,
	}
	if runtime.GOOS != "windows" {
		opts.UID = os.Getuid()
		opts.GID = os.Getgid()
	}
	return opts
}

// parseOptionString splits a "key=val,key=val" blob, honoring
// backslash escapes for commas and equals signs.
func parseOptionString(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, opt := range splitEscaped(s, ',') {
		if opt == "" {
			continue
		}
		parts := splitEscapedN(opt, '=', 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("option %q is not of the form key=val", opt)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

// splitEscaped splits s on sep, treating a backslash-prefixed sep as
// literal.
func splitEscaped(s string, sep byte) []string {
	return splitEscapedN(s, sep, -1)
}

func splitEscapedN(s string, sep byte, n int) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte('\\')
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == sep && (n < 0 || len(parts) < n-1):
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if escaped {
		cur.WriteByte('\\')
	}
	parts = append(parts, cur.String())
	return parts
}

// unescapeValue removes the backslash from escaped separators.
func unescapeValue(s string) string {
	r := strings.NewReplacer(`\,`, ",", `\=`, "=", `\:`, ":", `\ `, " ")
	return r.Replace(s)
}

// apply folds a parsed option map into the typed options, coercing
// values per key.
func (o *Options) apply(m map[string]string) error {
	for key, raw := range m {
		value := unescapeValue(raw)
		var err error
		switch key {
		case "root":
			o.Root = value
		case "cache_dir":
			o.CacheDir = value
		case "patterns":
			o.Patterns = o.Patterns[:0]
			for _, p := range splitEscaped(raw, ':') {
				if p = unescapeValue(p); p != "" {
					o.Patterns = append(o.Patterns, p)
				}
			}
		case "uid":
			o.UID, err = strconv.Atoi(value)
		case "gid":
			o.GID, err = strconv.Atoi(value)
		case "foreground":
			o.Foreground, err = strconv.ParseBool(value)
		case "nothreads":
			o.NoThreads, err = strconv.ParseBool(value)
		case "overwrite_rename_dest":
			o.OverwriteRenameDest, err = strconv.ParseBool(value)
		case "symlink_creation_windows":
			if _, ok := fs.ParseSymlinkPolicy(value); !ok {
				return errors.Errorf("unknown symlink_creation_windows value %q", value)
			}
			o.SymlinkCreationWindows = value
		case "debug":
			o.Debug, err = strconv.ParseBool(value)
		case "fusedebug":
			o.FuseDebug, err = strconv.ParseBool(value)
		case "log_in_file":
			o.LogInFile = value
		case "log_in_console":
			o.LogInConsole, err = strconv.ParseBool(value)
		case "log_in_syslog":
			o.LogInSyslog, err = strconv.ParseBool(value)
		case "rellinks":
			o.Rellinks, err = strconv.ParseBool(value)
		default:
			return errors.Errorf("unknown option %q", key)
		}
		if err != nil {
			return errors.Wrapf(err, "option %q", key)
		}
	}
	return nil
}

// validate fills derived defaults and rejects incomplete options.
func (o *Options) validate() error {
	if o.Root == "" {
		return errors.New("root directory must be specified")
	}
	root, err := filepath.Abs(o.Root)
	if err != nil {
		return errors.Wrap(err, "resolving root")
	}
	o.Root = root
	if o.CacheDir == "" {
		o.CacheDir = defaultCacheDir(o.Root)
	}
	return nil
}

// defaultCacheDir derives the per-root cache location under the
// user's cache directory.
func defaultCacheDir(root string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	encoded := base64.URLEncoding.EncodeToString([]byte(root))
	return filepath.Join(base, "PassthroughFS", encoded)
}

// symlinkPolicy picks the configured policy, probing the platform
// when none was given.
func (o *Options) symlinkPolicy() fs.SymlinkPolicy {
	if o.SymlinkCreationWindows != "" {
		policy, _ := fs.ParseSymlinkPolicy(o.SymlinkCreationWindows)
		return policy
	}
	return detectSymlinkPolicy(o.CacheDir)
}

// detectSymlinkPolicy probes whether real symlinks are allowed. On
// POSIX they always are; on Windows creating one needs a privilege
// ordinary users lack, in which case shortcut fabrication is the
// closest behavior.
func detectSymlinkPolicy(cacheDir string) fs.SymlinkPolicy {
	if runtime.GOOS != "windows" {
		return fs.PolicyRealSymlink
	}
	probe := filepath.Join(cacheDir, ".symlink_probe")
	_ = os.Remove(probe)
	if err := os.Symlink(filepath.Join(cacheDir, ".symlink_probe_target"), probe); err == nil {
		_ = os.Remove(probe)
		return fs.PolicyRealSymlink
	}
	return fs.PolicyCreateLnkfile
}
