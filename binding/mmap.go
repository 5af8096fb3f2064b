//go:build unix

package binding

import (
	"golang.org/x/sys/unix"
)

// mapping is a read-only shared mapping of a duplicated descriptor. It owns
// both the mapped region and the duplicate.
type mapping struct {
	fd   int
	data []byte
}

// mapDescriptor duplicates fd and maps its full extent read-only. The caller
// keeps ownership of fd.
func mapDescriptor(fd int) (*mapping, error) {
	dupFd, err := unix.Dup(fd)
	if err != nil {
		return nil, opError(KindAcquire, "dup", err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(dupFd, &st); err != nil {
		unix.Close(dupFd)
		return nil, opError(KindAcquire, "fstat", err)
	}
	if st.Size <= 0 {
		unix.Close(dupFd)
		return nil, opError(KindAcquire, "size", ErrEmptyFile)
	}

	data, err := unix.Mmap(dupFd, 0, int(st.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(dupFd)
		return nil, opError(KindAcquire, "mmap", err)
	}
	liveMappings.Add(1)
	return &mapping{fd: dupFd, data: data}, nil
}

// release unmaps the region and closes the duplicate. Safe to call twice.
func (m *mapping) release() error {
	if m == nil || m.data == nil {
		return nil
	}
	var firstErr error
	if err := unix.Munmap(m.data); err != nil {
		firstErr = opError(KindAcquire, "munmap", err)
	}
	if err := unix.Close(m.fd); err != nil && firstErr == nil {
		firstErr = opError(KindAcquire, "close", err)
	}
	m.data = nil
	m.fd = -1
	liveMappings.Add(-1)
	return firstErr
}
