package plugin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/kestrelrt/kestrel/kernel/utils"
)

// shadowCounter is a process-lifetime monotonic counter, mutated only
// through nextShadowName, matching spec.md §9's guidance that global
// mutable state be encapsulated behind a typed API rather than a bare
// package-level variable every caller touches directly.
var shadowCounter atomic.Uint64

// nextShadowName returns the "in_use_<counter>_<filename>" shadow-copy
// name for originalPath, in the same directory.
func nextShadowName(originalPath string) string {
	n := shadowCounter.Add(1)
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	return filepath.Join(dir, fmt.Sprintf("in_use_%d_%s", n, base))
}

// shadowCopy copies originalPath to a freshly named in_use_* sibling file
// and returns that path, so the plugin manager can hold the library file
// open for hot-reload-safe loading while the original path is free to be
// overwritten by a build tool.
func shadowCopy(originalPath string) (string, error) {
	src, err := os.Open(originalPath)
	if err != nil {
		return "", utils.NewKindError(utils.KindNotFound, "plugin: open original", err)
	}
	defer src.Close()

	dstPath := nextShadowName(originalPath)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", utils.NewKindError(utils.KindCopyFailed, "plugin: create shadow copy", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return "", utils.NewKindError(utils.KindCopyFailed, "plugin: copy shadow", err)
	}
	return dstPath, nil
}

// removeShadowCopy deletes the shadow file, logging rather than failing
// hard — the unload protocol tolerates a failed delete (e.g. the OS still
// has it mapped on some platforms) since the file's "in_use_" name marks
// it safe to garbage-collect later.
func removeShadowCopy(path string, logger *utils.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("plugin: failed to remove shadow copy",
			utils.String("path", path), utils.Err(err))
	}
}
