//go:build !linux

package gpio

// OpenCdev is only available on Linux.
func OpenCdev(chipName string) (Hardware, error) {
	return nil, ErrUnsupported
}
