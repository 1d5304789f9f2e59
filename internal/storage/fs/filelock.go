package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

// ErrLockHeld reports that another process kept an output lock until the
// caller gave up.
var ErrLockHeld = errors.New("output directory is locked")

const lockRetry = 50 * time.Millisecond

// BuildLock is an exclusive flock on a file inside an output directory.
// While held, the file names the holder as "<pid> <RFC 3339 time>".
type BuildLock struct {
	file *os.File
}

// LockOutput takes the lock at path, retrying until ctx is done. The
// returned error wraps ErrLockHeld and ctx.Err() and names the holder.
func LockOutput(ctx context.Context, path string) (*BuildLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	retry := time.NewTicker(lockRetry)
	defer retry.Stop()
	for {
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			_ = file.Close()
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			holder := lockHolder(file)
			_ = file.Close()
			return nil, fmt.Errorf("%w by %s: %w", ErrLockHeld, holder, ctx.Err())
		case <-retry.C:
		}
	}
	stamp := strconv.Itoa(os.Getpid()) + " " + time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(stamp), 0)
	}
	return &BuildLock{file: file}, nil
}

// Release clears the holder line and drops the lock. It is safe to call
// more than once.
func (l *BuildLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil
	_ = file.Truncate(0)
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_UN); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func lockHolder(file *os.File) string {
	buf := make([]byte, 64)
	n, _ := file.ReadAt(buf, 0)
	line := bytes.TrimSpace(buf[:n])
	if pid, at, ok := bytes.Cut(line, []byte(" ")); ok {
		return "pid " + string(pid) + " since " + string(at)
	}
	return "another process"
}
