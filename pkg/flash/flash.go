// Package flash drives page-buffered self-programmable memory.
//
// Words are staged into a page buffer with [Programmer.Fill], then the page is
// erased and written as one unit. [Stage] runs that sequence for a whole
// payload.
package flash

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	ErrOutOfRange  = errors.New("address outside of programmable memory")
	ErrUnaligned   = errors.New("address not aligned")
	ErrPageSize    = errors.New("data length is not a multiple of the page size")
	ErrNotStaged   = errors.New("page buffer was not filled for this page")
	ErrBusy        = errors.New("flash operation still in progress")
	ErrIllegalPage = errors.New("page size must be a non-zero even number")
)

// Programmer is the self-programming interface of the target memory.
// Erase and write only start the operation, completion is awaited with WaitBusy.
type Programmer interface {
	PageSize() int
	Fill(addr uint32, word uint16) error // Stage a little endian word in the page buffer
	ErasePage(addr uint32) error
	WritePage(addr uint32) error // Program page buffer into page at addr
	WaitBusy() error
	EnableReadAccess() error // Re-enable read access to the read-while-write section
}

// Stage programs data at addr, two bytes at a time.
// Each time a full page has been filled it is erased then written. addr must
// be page aligned and len(data) a multiple of the page size.
// If rww is set, read access is re-enabled after each page write.
// The caller is responsible for keeping [addr, addr+len(data)) inside the
// programmable region.
func Stage(p Programmer, addr uint32, data []byte, rww bool) error {
	pageSize := p.PageSize()
	if pageSize <= 0 || pageSize%2 != 0 {
		return ErrIllegalPage
	}
	if addr%uint32(pageSize) != 0 {
		return fmt.Errorf("%w : x%x", ErrUnaligned, addr)
	}
	if len(data)%pageSize != 0 {
		return fmt.Errorf("%w : %v", ErrPageSize, len(data))
	}
	for offset := 0; offset < len(data); {
		word := uint16(data[offset]) | uint16(data[offset+1])<<8
		if err := p.Fill(addr+uint32(offset), word); err != nil {
			return err
		}
		offset += 2
		if offset%pageSize != 0 {
			continue
		}
		page := addr + uint32(offset-pageSize)
		log.Debugf("[FLASH] programming page x%x", page)
		if err := p.ErasePage(page); err != nil {
			return err
		}
		if err := p.WaitBusy(); err != nil {
			return err
		}
		if err := p.WritePage(page); err != nil {
			return err
		}
		if err := p.WaitBusy(); err != nil {
			return err
		}
		if rww {
			if err := p.EnableReadAccess(); err != nil {
				return err
			}
		}
	}
	return nil
}
