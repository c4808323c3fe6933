package tftp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/samsamfire/tftpboot"
	"github.com/samsamfire/tftpboot/internal/crc"
	"github.com/samsamfire/tftpboot/internal/fifo"
	"github.com/samsamfire/tftpboot/pkg/config"
	"github.com/samsamfire/tftpboot/pkg/flash"
	"github.com/samsamfire/tftpboot/pkg/image"
	"github.com/samsamfire/tftpboot/pkg/watchdog"
	log "github.com/sirupsen/logrus"
)

// Status of the transfer after a poll
type Status uint8

const (
	StatusOngoing Status = iota
	StatusComplete
)

// Server receives one image and programs it.
// It is driven by repeated calls to [Server.Poll] or by [Server.Process] and
// is not safe for concurrent use.
type Server struct {
	transport tftpboot.Transport
	flash     flash.Programmer
	settings  *config.Settings
	watchdog  tftpboot.Watchdog
	engine    *Engine
	config    *config.Config
	state     TransferState
	buffer    []byte
	imageCRC  crc.CRC16
	imageSize uint32
	crcBlock  uint16
}

// Create a new server.
// A nil validator accepts any image, a nil watchdog is replaced by a timer of
// config.Timeout.
func NewServer(
	transport tftpboot.Transport,
	programmer flash.Programmer,
	eeprom config.EEPROM,
	validator image.Validator,
	wd tftpboot.Watchdog,
	cfg *config.Config,
) (*Server, error) {
	if transport == nil || programmer == nil || eeprom == nil {
		return nil, fmt.Errorf("%w : transport, flash and eeprom are mandatory", tftpboot.ErrIllegalConfig)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if programmer.PageSize() != cfg.PageSize {
		return nil, fmt.Errorf("%w : flash page size %v, configured %v", tftpboot.ErrIllegalConfig, programmer.PageSize(), cfg.PageSize)
	}
	if wd == nil {
		wd = watchdog.New(cfg.Timeout)
	}
	return &Server{
		transport: transport,
		flash:     programmer,
		settings:  config.NewSettings(eeprom),
		watchdog:  wd,
		engine:    NewEngine(cfg.MaxAddr, cfg.PageSize, cfg.TransferPort, cfg.RandomTID, validator),
		config:    cfg,
		buffer:    make([]byte, tftpboot.PacketMaxSize),
	}, nil
}

// Init opens the control socket and resolves the transfer port, the EEPROM
// override taking precedence over the configured one
func (server *Server) Init() error {
	initialized, err := server.settings.Initialized()
	if err != nil {
		return fmt.Errorf("read settings signature : %w", err)
	}
	if !initialized {
		if err := server.settings.Initialize(); err != nil {
			return fmt.Errorf("initialize settings : %w", err)
		}
	}
	port := server.config.TransferPort
	if !server.config.RandomTID {
		override, ok, err := server.settings.ReadTransferPort()
		if err != nil {
			return fmt.Errorf("read transfer port : %w", err)
		}
		if ok {
			port = override
		}
	}
	server.engine.TransferPort = port
	server.state.DataPort = port
	if err := server.transport.Open(server.config.Port); err != nil {
		return fmt.Errorf("open control socket : %w", err)
	}
	if server.config.RandomTID {
		log.Infof("[TFTP] listening on port %v, random transfer port", server.config.Port)
	} else {
		log.Infof("[TFTP] listening on port %v, transfer port %v", server.config.Port, port)
	}
	return nil
}

// Poll processes at most one received packet
func (server *Server) Poll() (Status, error) {
	available, err := server.transport.Available()
	if err != nil {
		return StatusOngoing, err
	}
	if available == 0 {
		return StatusOngoing, nil
	}
	server.state.Flashing = true

	// The receive flag can be raised before a whole frame is buffered
	for server.transport.ReceiveFlag() {
		server.transport.ClearReceiveFlag()
		time.Sleep(server.config.PacketDelay)
	}

	n, err := server.transport.Receive(server.buffer)
	if errors.Is(err, fifo.ErrNoDatagram) {
		return StatusOngoing, nil
	}
	if err != nil {
		return StatusOngoing, fmt.Errorf("receive : %w", err)
	}
	pkt, err := ParsePacket(server.buffer[:n])
	if err != nil {
		log.Warnf("[TFTP][RX] dropping datagram : %v", err)
		return StatusOngoing, nil
	}
	log.Debugf("[TFTP][RX] %v", pkt)
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("[TFTP][RX] raw packet\n%s", hex.Dump(server.buffer[:n]))
	}

	// Answer whoever sent this packet
	server.transport.SetDestination(pkt.Addr, pkt.Port)
	response, effects := server.engine.Handle(pkt, &server.state)
	response, err = server.apply(pkt, response, effects)
	if err != nil {
		return StatusOngoing, err
	}

	err = server.transport.Send(Build(response, &server.state))
	if err != nil {
		return StatusOngoing, fmt.Errorf("send %v : %w", response, err)
	}
	if response.IsError() {
		log.Warnf("[TFTP][TX] %v", response)
	} else {
		log.Debugf("[TFTP][TX] %v | block %v", response, server.state.LastBlock)
	}

	if response != FinalAck {
		return StatusOngoing, nil
	}
	server.state.Flashing = false
	log.Infof("[TFTP] transfer complete")
	return StatusComplete, server.transport.Close()
}

// Apply effects in order. Flash failures are reported to the peer and leave
// the image uncommitted, other failures are returned.
func (server *Server) apply(pkt Packet, response Response, effects Effects) (Response, error) {
	if effects.ResetTimer {
		server.watchdog.Reset()
	}
	if effects.InvalidateImage {
		if err := server.settings.WriteImageStatus(config.ImageBad); err != nil {
			return response, fmt.Errorf("invalidate image : %w", err)
		}
		server.imageCRC = 0
		server.imageSize = 0
		server.crcBlock = 0
	}
	if effects.OpenSocket {
		if err := server.transport.Open(effects.Port); err != nil {
			return response, fmt.Errorf("open data socket : %w", err)
		}
	}
	if effects.Program != nil {
		// Flash is about to change, the current image can no longer be trusted
		if err := server.invalidateImage(); err != nil {
			return response, err
		}
		write := effects.Program
		err := flash.Stage(server.flash, write.Addr, write.Data, server.config.ReadWhileWrite)
		if err != nil {
			log.Errorf("[FLASH] programming x%x failed : %v", write.Addr, err)
			return ErrorUnknown, nil
		}
		// Duplicates of the last block are rewritten but only counted once
		if pkt.Block > server.crcBlock {
			server.imageCRC.Block(write.Data[:write.Length])
			server.imageSize = write.Addr + uint32(write.Length)
			server.crcBlock = pkt.Block
		}
	}
	if effects.CommitImage {
		if err := server.settings.WriteImageStatus(config.ImageOk); err != nil {
			return response, fmt.Errorf("commit image : %w", err)
		}
		log.Infof("[TFTP] image committed | %v bytes | crc x%04x", server.imageSize, uint16(server.imageCRC))
	}
	return response, nil
}

// Mark the image as bad unless it already is.
// Data may arrive without a write request, e.g. after a reset or once a
// transfer completed.
func (server *Server) invalidateImage() error {
	status, err := server.settings.ReadImageStatus()
	if err != nil {
		return fmt.Errorf("read image status : %w", err)
	}
	if status == config.ImageBad {
		return nil
	}
	log.Warnf("[TFTP] data received outside of a transfer, invalidating image")
	if err := server.settings.WriteImageStatus(config.ImageBad); err != nil {
		return fmt.Errorf("invalidate image : %w", err)
	}
	return nil
}

// Process polls until the transfer completes, ctx is cancelled or the
// watchdog expires ([tftpboot.ErrTimeout])
func (server *Server) Process(ctx context.Context) error {
	log.Info("[TFTP] starting server processing")
	for {
		select {
		case <-ctx.Done():
			log.Info("[TFTP] exiting server process")
			return ctx.Err()
		default:
		}
		if server.watchdog.Expired() {
			log.Warnf("[TFTP] no valid packet received in %v", server.config.Timeout)
			return tftpboot.ErrTimeout
		}
		status, err := server.Poll()
		if err != nil {
			return err
		}
		if status == StatusComplete {
			return nil
		}
		time.Sleep(server.config.PollInterval)
	}
}

// State returns a copy of the transfer state
func (server *Server) State() TransferState {
	return server.state
}

// ImageStatus returns the commit sentinel, handing over to the application is
// only allowed when it is [config.ImageOk]
func (server *Server) ImageStatus() (config.ImageStatus, error) {
	return server.settings.ReadImageStatus()
}

// ImageCRC returns the CRC16 and size of the image received so far
func (server *Server) ImageCRC() (uint16, uint32) {
	return uint16(server.imageCRC), server.imageSize
}
