package fs

import "github.com/sirupsen/logrus"

// trace logs one operation with its result code when debug logging is
// enabled. Used as a deferred decorator around the callbacks (Opendir,
// Releasedir, Flush and Fsync are not traced):
//
//	defer f.trace("Mkdir", path, mode)(&errc)
func (f *FS) trace(op string, path string, args ...interface{}) func(result *int) {
	if f.log == nil || !f.log.IsLevelEnabled(logrus.DebugLevel) {
		return func(*int) {}
	}
	return func(result *int) {
		f.log.Debugf("%s(%s, %v) => %d", op, path, args, *result)
	}
}
