package streams

// Null discards everything written to it and remembers how many bytes it
// was given. The zero value is ready to use. Not safe for concurrent use.
type Null struct {
	size int64
}

func (n *Null) Write(p []byte) (int, error) {
	n.size += int64(len(p))
	return len(p), nil
}

func (n *Null) WriteByte(byte) error {
	n.size++
	return nil
}

func (n *Null) WriteString(s string) (int, error) {
	n.size += int64(len(s))
	return len(s), nil
}

// Size is the total number of bytes written since construction.
func (n *Null) Size() int64 { return n.size }
