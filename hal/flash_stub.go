package hal

// noFlash stands in for a flash that is missing or failed to open. Every
// operation reports why.
type noFlash struct {
	err error
}

func (f noFlash) reason() error {
	if f.err == nil {
		return ErrNotImplemented
	}
	return f.err
}

func (noFlash) SizeBytes() uint32       { return 0 }
func (noFlash) EraseBlockBytes() uint32 { return 0 }

func (f noFlash) ReadAt([]byte, uint32) (int, error)  { return 0, f.reason() }
func (f noFlash) WriteAt([]byte, uint32) (int, error) { return 0, f.reason() }
func (f noFlash) Erase(uint32, uint32) error          { return f.reason() }
