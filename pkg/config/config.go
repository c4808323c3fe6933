// Package config holds the tftp server settings and the persisted
// non-volatile settings area (EEPROM) of the bootloader.
package config

import (
	"fmt"
	"time"

	"github.com/samsamfire/tftpboot"
	"gopkg.in/ini.v1"
)

const serverSection = "tftp"

// Config of the tftp server, see [Default] for the default values
type Config struct {
	Port           uint16        // Control port for write requests
	TransferPort   uint16        // Data port when no EEPROM override and no random TID
	RandomTID      bool          // Derive the data port from the client port
	MaxAddr        uint32        // End of the application flash region (exclusive)
	PageSize       int           // Flash page size in bytes
	ReadWhileWrite bool          // Re-enable read access after each page write
	PacketDelay    time.Duration // Debounce delay on the receive-ready flag
	PollInterval   time.Duration // Idle delay between two polls
	Timeout        time.Duration // Transfer timeout, fed by each valid packet
}

// Default settings, sized for an ATmega328 with a 4 KiB bootloader section
func Default() *Config {
	return &Config{
		Port:           tftpboot.DefaultPort,
		TransferPort:   tftpboot.DefaultTransferPort,
		RandomTID:      false,
		MaxAddr:        0x7000,
		PageSize:       128,
		ReadWhileWrite: true,
		PacketDelay:    400 * time.Microsecond,
		PollInterval:   time.Millisecond,
		Timeout:        10 * time.Second,
	}
}

// Load settings from an ini file, missing keys keep their default value
func Load(file any) (*Config, error) {
	cfg, err := ini.Load(file)
	if err != nil {
		return nil, err
	}
	config := Default()
	section := cfg.Section(serverSection)
	config.Port = uint16(section.Key("Port").MustUint(uint(config.Port)))
	config.TransferPort = uint16(section.Key("TransferPort").MustUint(uint(config.TransferPort)))
	config.RandomTID = section.Key("RandomTID").MustBool(config.RandomTID)
	config.MaxAddr = uint32(section.Key("MaxAddr").MustUint64(uint64(config.MaxAddr)))
	config.PageSize = section.Key("PageSize").MustInt(config.PageSize)
	config.ReadWhileWrite = section.Key("ReadWhileWrite").MustBool(config.ReadWhileWrite)
	config.PacketDelay = section.Key("PacketDelay").MustDuration(config.PacketDelay)
	config.PollInterval = section.Key("PollInterval").MustDuration(config.PollInterval)
	config.Timeout = section.Key("Timeout").MustDuration(config.Timeout)
	return config, config.Validate()
}

// Validate checks that the flash geometry can hold whole tftp blocks
func (config *Config) Validate() error {
	if config.PageSize <= 0 || config.PageSize%2 != 0 {
		return fmt.Errorf("%w : page size %v must be a positive even number", tftpboot.ErrIllegalConfig, config.PageSize)
	}
	if tftpboot.BlockSize%config.PageSize != 0 {
		return fmt.Errorf("%w : page size %v does not divide the block size", tftpboot.ErrIllegalConfig, config.PageSize)
	}
	if config.MaxAddr == 0 || config.MaxAddr%uint32(config.PageSize) != 0 {
		return fmt.Errorf("%w : max address x%x must be a non-zero multiple of the page size", tftpboot.ErrIllegalConfig, config.MaxAddr)
	}
	if config.MaxAddr/tftpboot.BlockSize > 0xFFFF {
		return fmt.Errorf("%w : max address x%x exceeds the block number range", tftpboot.ErrIllegalConfig, config.MaxAddr)
	}
	if config.Timeout <= 0 {
		return fmt.Errorf("%w : timeout must be positive", tftpboot.ErrIllegalConfig)
	}
	return nil
}
