package syscall

import (
	"encoding/binary"
	"strings"

	"github.com/heliosproject/helios/kernel/internal/kernel/future"
	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

func fileOf(p *proc.Process, h types.Handle) (*fileRes, types.Errno) {
	r, errno := p.Handles().Get(h)
	if errno != types.OK {
		return nil, errno
	}
	fr, ok := r.(*fileRes)
	if !ok {
		return nil, types.ErrBadHandle
	}
	return fr, types.OK
}

func (d *Dispatcher) buildFileOpen(p *proc.Process, access *usermem.Access, req Request) (future.Computation, error) {
	src, err := argSlice(req.Args[0], req.Args[1])
	if err != nil {
		return nil, err
	}
	path, err := access.CopyIn(src)
	if err != nil {
		return nil, err
	}

	if d.files == nil {
		return failNow(types.ErrNoEntry), nil
	}

	op := d.files.Open(string(path), uint32(req.Args[2]))
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		f, errno, ready := op.Poll(d.wakeOf(pid))
		if !ready {
			return future.Pending()
		}
		if errno != types.OK {
			return future.Fail(errno)
		}

		h, errno := p.Handles().Insert(newFileRes(f))
		if errno != types.OK {
			f.Close()
			return future.Fail(errno)
		}
		return future.Done(int64(h))
	}), nil
}

func (d *Dispatcher) buildFileRead(p *proc.Process, req Request) (future.Computation, error) {
	dst, err := argSlice(req.Args[1], req.Args[2])
	if err != nil {
		return nil, err
	}
	if !dst.Valid() {
		return nil, &usermem.FaultError{Slice: dst, Op: "write"}
	}

	fr, errno := fileOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	op := fr.f.Read(int(dst.Len))
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		data, errno, ready := op.Poll(d.wakeOf(pid))
		if !ready {
			return future.Pending()
		}
		if errno != types.OK {
			return future.Fail(errno)
		}
		return future.DoneWith(int64(len(data)), future.OutCopy{Dst: dst, Data: data})
	}), nil
}

func (d *Dispatcher) buildFileWrite(p *proc.Process, access *usermem.Access, req Request) (future.Computation, error) {
	src, err := argSlice(req.Args[1], req.Args[2])
	if err != nil {
		return nil, err
	}
	data, err := access.CopyIn(src)
	if err != nil {
		return nil, err
	}

	fr, errno := fileOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	op := fr.f.Write(data)
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		n, errno, ready := op.Poll(d.wakeOf(pid))
		if !ready {
			return future.Pending()
		}
		if errno != types.OK {
			return future.Fail(errno)
		}
		return future.Done(int64(n))
	}), nil
}

func (d *Dispatcher) buildFileSeek(p *proc.Process, req Request) (future.Computation, error) {
	fr, errno := fileOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	whence := int(req.Args[2])
	if whence != provider.SeekStart && whence != provider.SeekCurrent && whence != provider.SeekEnd {
		return failNow(types.ErrInvalidArg), nil
	}

	op := fr.f.Seek(int64(req.Args[1]), whence)
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		pos, errno, ready := op.Poll(d.wakeOf(pid))
		if !ready {
			return future.Pending()
		}
		if errno != types.OK {
			return future.Fail(errno)
		}
		return future.Done(pos)
	}), nil
}

func (d *Dispatcher) buildFileStat(p *proc.Process, req Request) (future.Computation, error) {
	dst, err := argOut(req.Args[1], statEncodedLen)
	if err != nil {
		return nil, err
	}

	fr, errno := fileOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	op := fr.f.Stat()
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		info, errno, ready := op.Poll(d.wakeOf(pid))
		if !ready {
			return future.Pending()
		}
		if errno != types.OK {
			return future.Fail(errno)
		}
		return future.DoneWith(0, future.OutCopy{Dst: dst, Data: encodeStat(info)})
	}), nil
}

func (d *Dispatcher) buildFileList(p *proc.Process, access *usermem.Access, req Request) (future.Computation, error) {
	pat, err := argSlice(req.Args[1], req.Args[2])
	if err != nil {
		return nil, err
	}
	pattern, err := access.CopyIn(pat)
	if err != nil {
		return nil, err
	}
	dst, err := argSlice(req.Args[3], req.Args[4])
	if err != nil {
		return nil, err
	}
	if !dst.Valid() {
		return nil, &usermem.FaultError{Slice: dst, Op: "write"}
	}

	fr, errno := fileOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	op := fr.f.List(string(pattern))
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		names, errno, ready := op.Poll(d.wakeOf(pid))
		if !ready {
			return future.Pending()
		}
		if errno != types.OK {
			return future.Fail(errno)
		}

		enc := []byte(strings.Join(names, "\n"))
		if len(enc) > int(dst.Len) {
			return future.Fail(types.ErrNoSpace)
		}
		return future.DoneWith(int64(len(enc)), future.OutCopy{Dst: dst, Data: enc})
	}), nil
}

// encodeStat lays out a stat record: i64 size, u32 mode, u32 dir flag,
// i64 mtime, all little endian.
func encodeStat(info provider.FileInfo) []byte {
	buf := make([]byte, statEncodedLen)
	binary.LittleEndian.PutUint64(buf[0:], uint64(info.Size))
	binary.LittleEndian.PutUint32(buf[8:], info.Mode)
	var dir uint32
	if info.Dir {
		dir = 1
	}
	binary.LittleEndian.PutUint32(buf[12:], dir)
	binary.LittleEndian.PutUint64(buf[16:], uint64(info.ModTime))
	return buf
}
