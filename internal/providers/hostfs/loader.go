package hostfs

import (
	"os"
	"path/filepath"

	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// imageHeadroom is extra zeroed space appended above the loaded program for
// its stack and heap.
const imageHeadroom = 64 * 1024

// Loader is a ProcessFactory reading flat program images from the service
// root. The image bytes land at address zero of a fresh address space and the
// entry point is the image start.
type Loader struct {
	svc *Service
}

// NewLoader creates a loader sharing the service's root and breaker.
func NewLoader(svc *Service) *Loader { return &Loader{svc: svc} }

// Load implements provider.ProcessFactory.
func (l *Loader) Load(path string) provider.Op[provider.Image] {
	full := l.svc.resolve(path)
	return start(l.svc, func() (provider.Image, types.Errno) {
		data, err := os.ReadFile(full)
		if err != nil {
			return provider.Image{}, mapErr(err)
		}

		space := usermem.NewFlat(len(data) + imageHeadroom)
		if err := space.WriteAt(data, 0); err != nil {
			return provider.Image{}, types.ErrInvalidArg
		}
		name := filepath.Base(full)
		return provider.Image{Name: name, Entry: 0, Space: space}, types.OK
	})
}
