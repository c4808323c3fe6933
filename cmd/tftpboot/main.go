package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/samsamfire/tftpboot"
	"github.com/samsamfire/tftpboot/pkg/config"
	"github.com/samsamfire/tftpboot/pkg/flash"
	"github.com/samsamfire/tftpboot/pkg/image"
	"github.com/samsamfire/tftpboot/pkg/tftp"
	"github.com/samsamfire/tftpboot/pkg/transport"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	_ "github.com/samsamfire/tftpboot/pkg/transport/udp"
	_ "github.com/samsamfire/tftpboot/pkg/transport/virtual"
)

var DEFAULT_INTERFACE = "udp"
var DEFAULT_TRACE_BAUDRATE = 115200

func main() {
	// Command line arguments
	iface := flag.String("i", DEFAULT_INTERFACE, "transport interface e.g. udp,virtual")
	address := flag.String("a", "", "local address to listen on")
	configPath := flag.String("c", "", "ini configuration file")
	eepromPath := flag.String("e", "eeprom.ini", "persisted settings file")
	imagePath := flag.String("f", "flash.bin", "emulated flash content")
	level := flag.String("l", "info", "log level")
	tracePort := flag.String("trace-port", "", "also write logs to this serial port e.g. /dev/ttyUSB0")
	traceBaud := flag.Int("trace-baud", DEFAULT_TRACE_BAUDRATE, "baudrate of the trace serial port")
	flag.Parse()

	logLevel, err := log.ParseLevel(*level)
	if err != nil {
		panic(err)
	}
	log.SetLevel(logLevel)

	if *tracePort != "" {
		port, err := serial.Open(*tracePort, &serial.Mode{
			BaudRate: *traceBaud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			panic(err)
		}
		defer port.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, port))
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			panic(err)
		}
	}

	eeprom, err := config.NewIniEEPROM(*eepromPath, config.DefaultEEPROMSize)
	if err != nil {
		panic(err)
	}

	memory, err := flash.NewMemory(int(cfg.MaxAddr), cfg.PageSize)
	if err != nil {
		panic(err)
	}
	if f, err := os.Open(*imagePath); err == nil {
		err = memory.Load(f)
		f.Close()
		if err != nil {
			panic(err)
		}
	}

	socket, err := transport.New(*iface, *address)
	if err != nil {
		panic(err)
	}
	server, err := tftp.NewServer(socket, memory, eeprom, image.AVRVectorTable, nil, cfg)
	if err != nil {
		panic(err)
	}
	err = server.Init()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = server.Process(ctx)
	socket.Close()
	switch {
	case err == nil:
	case errors.Is(err, tftpboot.ErrTimeout):
		log.Info("[TFTP] timeout, leaving bootloader")
	case errors.Is(err, context.Canceled):
		log.Info("[TFTP] interrupted")
	default:
		panic(err)
	}

	// Flash is saved even when the image is not committed, like the real memory
	f, err := os.Create(*imagePath)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	_, err = memory.WriteTo(f)
	if err != nil {
		panic(err)
	}

	status, err := server.ImageStatus()
	if err != nil {
		panic(err)
	}
	if status == config.ImageOk {
		log.Infof("[TFTP] image is valid, starting application")
	} else {
		log.Warnf("[TFTP] no valid image, staying in bootloader")
	}
}
