package fifo

// Circular byte buffer modelled after the receive memory of a socket chip.
// One byte is always left unused so that a full buffer can be told apart
// from an empty one.
type Fifo struct {
	buffer   []byte
	writePos int
	readPos  int
}

func NewFifo(size int) *Fifo {
	return &Fifo{buffer: make([]byte, size)}
}

func (f *Fifo) Reset() {
	f.readPos = 0
	f.writePos = 0
}

// Space left for writing
func (f *Fifo) Space() int {
	sizeLeft := f.readPos - f.writePos - 1
	if sizeLeft < 0 {
		sizeLeft += len(f.buffer)
	}
	return sizeLeft
}

// Number of bytes waiting to be read
func (f *Fifo) Occupied() int {
	sizeOccupied := f.writePos - f.readPos
	if sizeOccupied < 0 {
		sizeOccupied += len(f.buffer)
	}
	return sizeOccupied
}

// Write data to fifo, returns the number of bytes written
// Writing stops when the fifo is full
func (f *Fifo) Write(buffer []byte) int {
	writeCounter := 0
	for _, element := range buffer {
		writePosNext := f.writePos + 1
		if writePosNext == len(f.buffer) {
			writePosNext = 0
		}
		if writePosNext == f.readPos {
			break
		}
		f.buffer[f.writePos] = element
		f.writePos = writePosNext
		writeCounter++
	}
	return writeCounter
}

// Read data from fifo and return number of bytes read
func (f *Fifo) Read(buffer []byte) int {
	n := f.Peek(buffer)
	f.readPos = (f.readPos + n) % len(f.buffer)
	return n
}

// Peek copies data without consuming it
func (f *Fifo) Peek(buffer []byte) int {
	readCounter := 0
	pos := f.readPos
	for index := range buffer {
		if pos == f.writePos {
			break
		}
		buffer[index] = f.buffer[pos]
		readCounter++
		pos++
		if pos == len(f.buffer) {
			pos = 0
		}
	}
	return readCounter
}

// Skip discards up to n bytes, returns the number of bytes discarded
func (f *Fifo) Skip(n int) int {
	occupied := f.Occupied()
	if n > occupied {
		n = occupied
	}
	f.readPos = (f.readPos + n) % len(f.buffer)
	return n
}
