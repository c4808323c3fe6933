package config

import (
	"testing"
	"time"

	"github.com/samsamfire/tftpboot"
	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	assert.Nil(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	raw := []byte(`
[tftp]
Port = 6969
TransferPort = 0
RandomTID = true
MaxAddr = 253952
PageSize = 256
PacketDelay = 2ms
Timeout = 30s
`)
	cfg, err := Load(raw)
	assert.Nil(t, err)
	assert.EqualValues(t, 6969, cfg.Port)
	assert.EqualValues(t, 0, cfg.TransferPort)
	assert.True(t, cfg.RandomTID)
	assert.EqualValues(t, 0x3E000, cfg.MaxAddr)
	assert.Equal(t, 256, cfg.PageSize)
	assert.Equal(t, 2*time.Millisecond, cfg.PacketDelay)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	// Untouched keys keep defaults
	assert.True(t, cfg.ReadWhileWrite)
	assert.Equal(t, time.Millisecond, cfg.PollInterval)
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := Load([]byte(""))
	assert.Nil(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.PageSize = 100
	assert.ErrorIs(t, cfg.Validate(), tftpboot.ErrIllegalConfig)
	cfg = Default()
	cfg.PageSize = 1024
	assert.ErrorIs(t, cfg.Validate(), tftpboot.ErrIllegalConfig)
	cfg = Default()
	cfg.MaxAddr = 0x7010
	assert.ErrorIs(t, cfg.Validate(), tftpboot.ErrIllegalConfig)
	cfg = Default()
	cfg.MaxAddr = 0
	assert.ErrorIs(t, cfg.Validate(), tftpboot.ErrIllegalConfig)
	cfg = Default()
	cfg.Timeout = 0
	assert.ErrorIs(t, cfg.Validate(), tftpboot.ErrIllegalConfig)
}
