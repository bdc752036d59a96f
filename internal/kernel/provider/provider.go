package provider

import (
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Op is a suspending collaborator operation yielding a T. Poll attempts
// progress without blocking; when it returns ready=false the op has arranged
// for wake to be called once progress is possible.
type Op[T any] interface {
	Poll(wake func()) (v T, e types.Errno, ready bool)
}

// Ready builds an op that is already complete. Synchronous providers return
// these so every operation flows through the one polling path.
func Ready[T any](v T, e types.Errno) Op[T] { return ready[T]{v: v, e: e} }

type ready[T any] struct {
	v T
	e types.Errno
}

func (r ready[T]) Poll(func()) (T, types.Errno, bool) { return r.v, r.e, true }

// Open flags.
const (
	OpenRead   uint32 = 1 << iota // read access
	OpenWrite                     // write access
	OpenCreate                    // create if missing
	OpenTrunc                     // truncate on open
)

// Seek whence values, matching the conventional encoding.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// FileInfo is the metadata a stat operation reports.
type FileInfo struct {
	Size    int64
	Mode    uint32
	Dir     bool
	ModTime int64 // unix seconds
}

// File is an open file on a FileService. Every data operation is asynchronous;
// Close is synchronous and idempotent.
type File interface {
	// Read yields up to n bytes from the current position, advancing it.
	// An empty result with OK means end of file.
	Read(n int) Op[[]byte]
	// Write stores p at the current position, advancing it, and yields the
	// byte count written.
	Write(p []byte) Op[int]
	// Seek repositions the file cursor and yields the new absolute offset.
	Seek(offset int64, whence int) Op[int64]
	// Stat yields the file metadata.
	Stat() Op[FileInfo]
	// List yields the names under a directory file matching pattern, in
	// lexical order. Fails with ErrInvalidArg on a non-directory.
	List(pattern string) Op[[]string]
	Close()
}

// FileService opens paths into Files. Implementations live outside the core;
// the kernel routes file syscalls here and never interprets paths itself.
type FileService interface {
	Open(path string, flags uint32) Op[File]
}

// Image is a loaded program: a populated address space plus its entry point.
type Image struct {
	Name  string
	Entry uint64
	Space usermem.AddressSpace
}

// ProcessFactory loads program paths into runnable images. The kernel wraps
// the image into a process, seeds its handle table, and admits it.
type ProcessFactory interface {
	Load(path string) Op[Image]
}
