package flash

import (
	"errors"
	"fmt"
	"io"
)

var ErrPageMismatch = errors.New("word staged for a different page than the pending one")

// Memory emulates the self-programmable memory of a microcontroller.
// Writes go through a page buffer, a page must be erased before being
// written, and programming can only clear bits like real NOR flash.
type Memory struct {
	data        []byte
	pageSize    int
	pageBuffer  []byte
	pageAddr    uint32
	filled      int
	busy        bool
	readBlocked bool
	// Operation counters
	Fills  int
	Erases int
	Writes int
}

// Create a new erased memory of size bytes, organised in pages of pageSize bytes
func NewMemory(size int, pageSize int) (*Memory, error) {
	if pageSize <= 0 || pageSize%2 != 0 {
		return nil, ErrIllegalPage
	}
	if size <= 0 || size%pageSize != 0 {
		return nil, fmt.Errorf("%w : size %v for page size %v", ErrPageSize, size, pageSize)
	}
	m := &Memory{
		data:       make([]byte, size),
		pageSize:   pageSize,
		pageBuffer: make([]byte, pageSize),
	}
	erase(m.data)
	erase(m.pageBuffer)
	return m, nil
}

func erase(b []byte) {
	for i := range b {
		b[i] = 0xFF
	}
}

func (m *Memory) PageSize() int {
	return m.pageSize
}

func (m *Memory) Size() int {
	return len(m.data)
}

func (m *Memory) checkPage(addr uint32) error {
	if addr%uint32(m.pageSize) != 0 {
		return fmt.Errorf("%w : x%x", ErrUnaligned, addr)
	}
	if uint64(addr)+uint64(m.pageSize) > uint64(len(m.data)) {
		return fmt.Errorf("%w : x%x", ErrOutOfRange, addr)
	}
	return nil
}

func (m *Memory) Fill(addr uint32, word uint16) error {
	if addr%2 != 0 {
		return fmt.Errorf("%w : x%x", ErrUnaligned, addr)
	}
	if uint64(addr)+2 > uint64(len(m.data)) {
		return fmt.Errorf("%w : x%x", ErrOutOfRange, addr)
	}
	page := addr - addr%uint32(m.pageSize)
	if m.filled > 0 && page != m.pageAddr {
		return fmt.Errorf("%w : x%x (pending x%x)", ErrPageMismatch, addr, m.pageAddr)
	}
	if m.filled == 0 {
		m.pageAddr = page
	}
	offset := addr % uint32(m.pageSize)
	m.pageBuffer[offset] = byte(word)
	m.pageBuffer[offset+1] = byte(word >> 8)
	m.filled++
	m.Fills++
	return nil
}

func (m *Memory) ErasePage(addr uint32) error {
	if m.busy {
		return ErrBusy
	}
	if err := m.checkPage(addr); err != nil {
		return err
	}
	erase(m.data[addr : addr+uint32(m.pageSize)])
	m.busy = true
	m.readBlocked = true
	m.Erases++
	return nil
}

func (m *Memory) WritePage(addr uint32) error {
	if m.busy {
		return ErrBusy
	}
	if err := m.checkPage(addr); err != nil {
		return err
	}
	if m.filled < m.pageSize/2 || m.pageAddr != addr {
		return fmt.Errorf("%w : x%x", ErrNotStaged, addr)
	}
	page := m.data[addr : addr+uint32(m.pageSize)]
	for i := range page {
		page[i] &= m.pageBuffer[i]
	}
	erase(m.pageBuffer)
	m.filled = 0
	m.busy = true
	m.readBlocked = true
	m.Writes++
	return nil
}

func (m *Memory) WaitBusy() error {
	m.busy = false
	return nil
}

func (m *Memory) EnableReadAccess() error {
	if m.busy {
		return ErrBusy
	}
	m.readBlocked = false
	return nil
}

// ReadBlocked reports whether the memory was modified and read access has not
// been re-enabled since
func (m *Memory) ReadBlocked() bool {
	return m.readBlocked
}

// Bytes returns a copy of the memory content
func (m *Memory) Bytes() []byte {
	b := make([]byte, len(m.data))
	copy(b, m.data)
	return b
}

// WriteTo writes the whole memory content to w
func (m *Memory) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.data)
	return int64(n), err
}

// Load replaces the memory content with an image read from r.
// Bytes not provided by r are left erased.
func (m *Memory) Load(r io.Reader) error {
	erase(m.data)
	_, err := io.ReadFull(r, m.data)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}
	return err
}
