// Command excludefs mounts a pass-through filesystem that overlays a
// single mount point on a root and a cache directory, storing paths
// matching the exclusion patterns under the cache.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/excludefs/excludefs/fs"
)

var optionBlobs []string

var rootCmd = &cobra.Command{
	Use:   "excludefs [-o key=val,...] mountpoint",
	Short: "Mount a pass-through filesystem that splits paths between a root and a cache directory by glob patterns",
	Long: `excludefs overlays a single mount point on two backing directories.
Paths whose name matches an exclusion pattern are physically stored
under the cache directory; everything else lives under the root. The
mount exposes the union of both trees and migrates files lazily when
their classification changes.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringArrayVarP(&optionBlobs, "options", "o", nil,
		"mount options as key=val pairs separated by commas; escape , = : and space with \\")
}

func run(cmd *cobra.Command, args []string) error {
	opts := defaultOptions()
	for _, blob := range optionBlobs {
		m, err := parseOptionString(blob)
		if err != nil {
			return err
		}
		if err := opts.apply(m); err != nil {
			return err
		}
	}
	if err := opts.validate(); err != nil {
		return err
	}
	mountpoint, err := filepath.Abs(args[0])
	if err != nil {
		return errors.Wrap(err, "canonicalizing mount point")
	}
	opts.Mountpoint = mountpoint

	if !opts.Foreground && !inDaemonChild() {
		return daemonizeSelf()
	}

	if err := mount(opts); err != nil {
		signalOutcome(err)
		return err
	}
	return nil
}

func mount(opts *Options) error {
	if err := os.MkdirAll(opts.CacheDir, 0o777); err != nil {
		return errors.Wrap(err, "creating cache directory")
	}
	log := buildLogger(opts)
	if len(opts.Patterns) > 0 {
		log.Infof("excluded patterns: %v", opts.Patterns)
	}
	log.Infof("cache directory: %s", opts.CacheDir)

	fsys, err := fs.New(fs.Config{
		Root:                opts.Root,
		CacheDir:            opts.CacheDir,
		Mountpoint:          opts.Mountpoint,
		Patterns:            opts.Patterns,
		OverwriteRenameDest: opts.OverwriteRenameDest,
		SymlinkPolicy:       opts.symlinkPolicy(),
		Threads:             !opts.NoThreads,
		Log:                 log,
		OnInit: func() {
			signalOutcome(nil)
		},
	})
	if err != nil {
		return err
	}

	host := fuse.NewFileSystemHost(fsys)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		host.Unmount()
	}()

	if !host.Mount(opts.Mountpoint, fuseArgs(opts)) {
		return errors.Errorf("mounting on %s failed", opts.Mountpoint)
	}
	return nil
}

// fuseArgs translates options into host arguments.
func fuseArgs(opts *Options) []string {
	var args []string
	if opts.NoThreads {
		args = append(args, "-s")
	}
	if opts.FuseDebug {
		args = append(args, "-d")
	}
	if opts.UID >= 0 {
		args = append(args, "-o", fmt.Sprintf("uid=%d", opts.UID))
	}
	if opts.GID >= 0 {
		args = append(args, "-o", fmt.Sprintf("gid=%d", opts.GID))
	}
	if runtime.GOOS == "windows" && opts.Rellinks {
		args = append(args, "-o", "rellinks")
	}
	return args
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "excludefs:", err)
		os.Exit(1)
	}
}
