package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

var ErrEEPROMAddress = errors.New("eeprom address out of range")

const DefaultEEPROMSize = 1024

// EEPROM is a small byte addressed non-volatile settings area
type EEPROM interface {
	Load(addr uint16) (byte, error)
	Store(addr uint16, value byte) error
}

// MemoryEEPROM is a volatile EEPROM, erased bytes read as 0xFF
type MemoryEEPROM struct {
	data []byte
}

func NewMemoryEEPROM(size int) *MemoryEEPROM {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &MemoryEEPROM{data: data}
}

func (e *MemoryEEPROM) Load(addr uint16) (byte, error) {
	if int(addr) >= len(e.data) {
		return 0, fmt.Errorf("%w : x%x", ErrEEPROMAddress, addr)
	}
	return e.data[addr], nil
}

func (e *MemoryEEPROM) Store(addr uint16, value byte) error {
	if int(addr) >= len(e.data) {
		return fmt.Errorf("%w : x%x", ErrEEPROMAddress, addr)
	}
	e.data[addr] = value
	return nil
}

const eepromSection = "EEPROM"

// Key names used for the known locations, others are named after their address
var eepromKeyNames = map[uint16]string{
	AddrSignature1:       "Signature1",
	AddrSignature2:       "Signature2",
	AddrImageStatus:      "ImageStatus",
	AddrPortSignature:    "PortSignature",
	AddrTransferPort:     "TransferPortLow",
	AddrTransferPort + 1: "TransferPortHigh",
}

func eepromKey(addr uint16) string {
	name, ok := eepromKeyNames[addr]
	if ok {
		return name
	}
	return fmt.Sprintf("Byte%04X", addr)
}

// IniEEPROM persists the settings area inside an ini file.
// The file is rewritten on every store, like a byte write to a real EEPROM.
type IniEEPROM struct {
	path string
	size int
	file *ini.File
}

// Open the ini backed EEPROM at path, a missing file reads as erased
func NewIniEEPROM(path string, size int) (*IniEEPROM, error) {
	file, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Infof("[EEPROM] %v does not exist, starting erased", path)
	}
	return &IniEEPROM{path: path, size: size, file: file}, nil
}

func (e *IniEEPROM) Load(addr uint16) (byte, error) {
	if int(addr) >= e.size {
		return 0, fmt.Errorf("%w : x%x", ErrEEPROMAddress, addr)
	}
	section := e.file.Section(eepromSection)
	if !section.HasKey(eepromKey(addr)) {
		return 0xFF, nil
	}
	raw := section.Key(eepromKey(addr)).String()
	value, err := strconv.ParseUint(raw, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("[EEPROM] invalid value %q for %v : %w", raw, eepromKey(addr), err)
	}
	return byte(value), nil
}

func (e *IniEEPROM) Store(addr uint16, value byte) error {
	if int(addr) >= e.size {
		return fmt.Errorf("%w : x%x", ErrEEPROMAddress, addr)
	}
	e.file.Section(eepromSection).Key(eepromKey(addr)).SetValue(fmt.Sprintf("0x%02X", value))
	return e.file.SaveTo(e.path)
}
