package hostfs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/resilience"
	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Service is a FileService rooted at a host directory.
type Service struct {
	root    string
	log     *logging.Logger
	breaker *resilience.Breaker
}

// New creates a file service over root.
func New(root string, log *logging.Logger) *Service {
	return &Service{
		root: root,
		log:  log,
		breaker: resilience.New("hostfs", resilience.Settings{
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("File service breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

// resolve jails a user path under the service root.
func (s *Service) resolve(path string) string {
	return filepath.Join(s.root, filepath.Clean("/"+path))
}

// Open implements provider.FileService.
func (s *Service) Open(path string, flags uint32) provider.Op[provider.File] {
	full := s.resolve(path)
	return start(s, func() (provider.File, types.Errno) {
		f, err := os.OpenFile(full, osFlags(flags), 0o644)
		if err != nil {
			return nil, mapErr(err)
		}
		return &hostFile{svc: s, f: f, path: full}, types.OK
	})
}

func osFlags(flags uint32) int {
	var out int
	read := flags&provider.OpenRead != 0
	write := flags&provider.OpenWrite != 0
	switch {
	case read && write:
		out = os.O_RDWR
	case write:
		out = os.O_WRONLY
	default:
		out = os.O_RDONLY
	}
	if flags&provider.OpenCreate != 0 {
		out |= os.O_CREATE
	}
	if flags&provider.OpenTrunc != 0 {
		out |= os.O_TRUNC
	}
	return out
}

func mapErr(err error) types.Errno {
	if os.IsNotExist(err) {
		return types.ErrNoEntry
	}
	return types.ErrInvalidArg
}

// hostFile is an open host file behind the provider.File contract.
type hostFile struct {
	svc  *Service
	path string

	mu sync.Mutex
	f  *os.File
}

// Read implements provider.File.
func (h *hostFile) Read(n int) provider.Op[[]byte] {
	return start(h.svc, func() ([]byte, types.Errno) {
		h.mu.Lock()
		defer h.mu.Unlock()

		buf := make([]byte, n)
		m, err := h.f.Read(buf)
		if err == io.EOF {
			return nil, types.OK
		}
		if err != nil {
			return nil, mapErr(err)
		}
		return buf[:m], types.OK
	})
}

// Write implements provider.File.
func (h *hostFile) Write(p []byte) provider.Op[int] {
	return start(h.svc, func() (int, types.Errno) {
		h.mu.Lock()
		defer h.mu.Unlock()

		n, err := h.f.Write(p)
		if err != nil {
			return 0, mapErr(err)
		}
		return n, types.OK
	})
}

// Seek implements provider.File.
func (h *hostFile) Seek(offset int64, whence int) provider.Op[int64] {
	return start(h.svc, func() (int64, types.Errno) {
		h.mu.Lock()
		defer h.mu.Unlock()

		pos, err := h.f.Seek(offset, whence)
		if err != nil {
			return 0, mapErr(err)
		}
		return pos, types.OK
	})
}

// Stat implements provider.File.
func (h *hostFile) Stat() provider.Op[provider.FileInfo] {
	return start(h.svc, func() (provider.FileInfo, types.Errno) {
		h.mu.Lock()
		defer h.mu.Unlock()

		fi, err := h.f.Stat()
		if err != nil {
			return provider.FileInfo{}, mapErr(err)
		}
		return provider.FileInfo{
			Size:    fi.Size(),
			Mode:    uint32(fi.Mode().Perm()),
			Dir:     fi.IsDir(),
			ModTime: fi.ModTime().Unix(),
		}, types.OK
	})
}

// List implements provider.File. The pattern supports doublestar globs
// evaluated relative to the directory.
func (h *hostFile) List(pattern string) provider.Op[[]string] {
	return start(h.svc, func() ([]string, types.Errno) {
		fi, err := os.Stat(h.path)
		if err != nil {
			return nil, mapErr(err)
		}
		if !fi.IsDir() {
			return nil, types.ErrInvalidArg
		}
		if pattern == "" {
			pattern = "*"
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, types.ErrInvalidArg
		}

		names, err := doublestar.Glob(os.DirFS(h.path), pattern)
		if err != nil {
			return nil, types.ErrInvalidArg
		}
		sort.Strings(names)
		return names, types.OK
	})
}

// Close implements provider.File.
func (h *hostFile) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.f.Close()
}

// asyncOp completes on a background goroutine and wakes the last registered
// callback.
type asyncOp[T any] struct {
	mu   sync.Mutex
	done bool
	v    T
	e    types.Errno
	wake func()
}

// errnoError carries an Errno through the breaker's error return.
type errnoError types.Errno

func (e errnoError) Error() string { return types.Errno(e).String() }

// start runs fn through the service breaker on its own goroutine.
func start[T any](s *Service, fn func() (T, types.Errno)) provider.Op[T] {
	o := &asyncOp[T]{}
	go func() {
		res, err := s.breaker.Execute(func() (interface{}, error) {
			v, e := fn()
			if e != types.OK {
				return v, errnoError(e)
			}
			return v, nil
		})

		var v T
		if res != nil {
			v = res.(T)
		}
		switch e := err.(type) {
		case nil:
			o.complete(v, types.OK)
		case errnoError:
			o.complete(v, types.Errno(e))
		default:
			// breaker rejection
			var zero T
			o.complete(zero, types.ErrNoEntry)
		}
	}()
	return o
}

// Poll implements provider.Op.
func (o *asyncOp[T]) Poll(wake func()) (T, types.Errno, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done {
		return o.v, o.e, true
	}
	o.wake = wake
	var zero T
	return zero, types.OK, false
}

func (o *asyncOp[T]) complete(v T, e types.Errno) {
	o.mu.Lock()
	o.v, o.e, o.done = v, e, true
	wake := o.wake
	o.wake = nil
	o.mu.Unlock()

	if wake != nil {
		wake()
	}
}
