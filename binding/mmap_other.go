//go:build !unix

package binding

type mapping struct {
	data []byte
}

func mapDescriptor(fd int) (*mapping, error) {
	return nil, opError(KindAcquire, "mmap", ErrUnsupported)
}

func (m *mapping) release() error {
	return nil
}
