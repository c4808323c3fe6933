package config

import (
	log "github.com/sirupsen/logrus"
)

// EEPROM layout shared with the rest of the bootloader
const (
	AddrSignature1    uint16 = 0x00
	AddrSignature2    uint16 = 0x01
	AddrImageStatus   uint16 = 0x02
	AddrPortSignature uint16 = 0x1A
	AddrTransferPort  uint16 = 0x1B // 2 bytes, little endian
)

const (
	Signature1Value    byte = 0x55
	Signature2Value    byte = 0xAA
	PortSignatureValue byte = 0xBB
)

// Commit sentinel of the application image
type ImageStatus byte

const (
	ImageOk  ImageStatus = 0xEE
	ImageBad ImageStatus = 0xFF
)

func (s ImageStatus) String() string {
	switch s {
	case ImageOk:
		return "ok"
	case ImageBad:
		return "bad"
	default:
		return "unknown"
	}
}

// Settings provides typed access to the values stored in the EEPROM
type Settings struct {
	eeprom EEPROM
}

func NewSettings(eeprom EEPROM) *Settings {
	return &Settings{eeprom: eeprom}
}

// Read the image commit sentinel, anything but [ImageOk] is an image that
// must not be started
func (s *Settings) ReadImageStatus() (ImageStatus, error) {
	value, err := s.eeprom.Load(AddrImageStatus)
	if err != nil {
		return ImageBad, err
	}
	if ImageStatus(value) != ImageOk {
		return ImageBad, nil
	}
	return ImageOk, nil
}

func (s *Settings) WriteImageStatus(status ImageStatus) error {
	log.Debugf("[EEPROM] image status -> %v", status)
	return s.eeprom.Store(AddrImageStatus, byte(status))
}

// Read the transfer port override.
// ok is false when the port signature is not present.
func (s *Settings) ReadTransferPort() (port uint16, ok bool, err error) {
	signature, err := s.eeprom.Load(AddrPortSignature)
	if err != nil || signature != PortSignatureValue {
		return 0, false, err
	}
	low, err := s.eeprom.Load(AddrTransferPort)
	if err != nil {
		return 0, false, err
	}
	high, err := s.eeprom.Load(AddrTransferPort + 1)
	if err != nil {
		return 0, false, err
	}
	return uint16(high)<<8 | uint16(low), true, nil
}

// Initialized reports whether the settings area carries the bootloader
// signatures
func (s *Settings) Initialized() (bool, error) {
	sig1, err := s.eeprom.Load(AddrSignature1)
	if err != nil {
		return false, err
	}
	sig2, err := s.eeprom.Load(AddrSignature2)
	if err != nil {
		return false, err
	}
	return sig1 == Signature1Value && sig2 == Signature2Value, nil
}

// Initialize writes the signatures and marks the image as bad.
// Other settings are left untouched.
func (s *Settings) Initialize() error {
	log.Infof("[EEPROM] initializing settings area")
	err := s.WriteImageStatus(ImageBad)
	if err != nil {
		return err
	}
	err = s.eeprom.Store(AddrSignature1, Signature1Value)
	if err != nil {
		return err
	}
	return s.eeprom.Store(AddrSignature2, Signature2Value)
}

// Write the transfer port override and its signature
func (s *Settings) WriteTransferPort(port uint16) error {
	err := s.eeprom.Store(AddrTransferPort, byte(port))
	if err != nil {
		return err
	}
	err = s.eeprom.Store(AddrTransferPort+1, byte(port>>8))
	if err != nil {
		return err
	}
	return s.eeprom.Store(AddrPortSignature, PortSignatureValue)
}

// Remove the transfer port override
func (s *Settings) ClearTransferPort() error {
	return s.eeprom.Store(AddrPortSignature, 0xFF)
}
