package storage

// BufferLoader wraps a caller-owned byte slice. Load returns a
// sub-range of that slice with a no-op disposer; the caller retains
// ownership and must keep the slice alive for the loader's lifetime.
type BufferLoader struct {
	data []byte
}

// NewBufferLoader wraps data. data is not copied.
func NewBufferLoader(data []byte) *BufferLoader {
	return &BufferLoader{data: data}
}

// Load returns the sub-range [offset, offset+size) of the wrapped
// slice, or AccessFailed if that range exceeds the slice.
func (l *BufferLoader) Load(offset, size int64) (FreeableBuffer, error) {
	if err := checkRange(offset, size, int64(len(l.data))); err != nil {
		return FreeableBuffer{}, err
	}
	return noopFreeable(l.data[offset : offset+size : offset+size]), nil
}

// Size returns the length of the wrapped slice.
func (l *BufferLoader) Size() (int64, error) { return int64(len(l.data)), nil }

// Close is a no-op; the loader does not own data.
func (l *BufferLoader) Close() error { return nil }
