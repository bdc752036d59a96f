package kernel

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// memFile is a read-only in-memory file. The boot path serves the process
// environment through one.
type memFile struct {
	mu   sync.Mutex
	data []byte
	off  int64
}

func newMemFile(data []byte) *memFile { return &memFile{data: data} }

func (m *memFile) Read(n int) provider.Op[[]byte] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.off >= int64(len(m.data)) {
		return provider.Ready[[]byte](nil, types.OK)
	}
	end := m.off + int64(n)
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	out := make([]byte, end-m.off)
	copy(out, m.data[m.off:end])
	m.off = end
	return provider.Ready(out, types.OK)
}

func (m *memFile) Write([]byte) provider.Op[int] {
	return provider.Ready(0, types.ErrInvalidArg)
}

func (m *memFile) Seek(offset int64, whence int) provider.Op[int64] {
	m.mu.Lock()
	defer m.mu.Unlock()

	var base int64
	switch whence {
	case provider.SeekStart:
		base = 0
	case provider.SeekCurrent:
		base = m.off
	case provider.SeekEnd:
		base = int64(len(m.data))
	default:
		return provider.Ready[int64](0, types.ErrInvalidArg)
	}
	pos := base + offset
	if pos < 0 {
		return provider.Ready[int64](0, types.ErrInvalidArg)
	}
	m.off = pos
	return provider.Ready(pos, types.OK)
}

func (m *memFile) Stat() provider.Op[provider.FileInfo] {
	return provider.Ready(provider.FileInfo{Size: int64(len(m.data)), Mode: 0o444}, types.OK)
}

func (m *memFile) List(string) provider.Op[[]string] {
	return provider.Ready[[]string](nil, types.ErrInvalidArg)
}

func (m *memFile) Close() {}
