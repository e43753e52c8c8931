//go:build linux

package uinput

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// ioctl requests and structs from linux/uinput.h. Device setup goes through
// the uinput_user_dev write, which every kernel since 2.6 accepts.
const (
	uinputPath  = "/dev/uinput"
	maxNameSize = 80
	absCount    = 64

	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetAbsBit  = 0x40045567
	uiSetPropBit = 0x4004556a
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type userDev struct {
	Name         [maxNameSize]byte
	ID           inputID
	FFEffectsMax uint32
	Absmax       [absCount]int32
	Absmin       [absCount]int32
	Absfuzz      [absCount]int32
	Absflat      [absCount]int32
}

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Device is a virtual input device backed by /dev/uinput.
type Device struct {
	file *os.File
}

// Open creates the virtual device. The kernel registers it asynchronously;
// it shows up under /dev/input shortly after.
func Open(cfg Config) (*Device, error) {
	file, err := os.OpenFile(uinputPath, syscall.O_WRONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uinputPath, err)
	}
	if err := setup(file, cfg); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Device{file: file}, nil
}

func setup(file *os.File, cfg Config) error {
	if err := ioctl(file, uiSetEvBit, uintptr(EV_SYN)); err != nil {
		return fmt.Errorf("registering EV_SYN: %w", err)
	}
	if len(cfg.Keys) > 0 {
		if err := ioctl(file, uiSetEvBit, uintptr(EV_KEY)); err != nil {
			return fmt.Errorf("registering EV_KEY: %w", err)
		}
		for _, code := range cfg.Keys {
			if err := ioctl(file, uiSetKeyBit, uintptr(code)); err != nil {
				return fmt.Errorf("registering key 0x%x: %w", code, err)
			}
		}
	}
	if len(cfg.Axes) > 0 {
		if err := ioctl(file, uiSetEvBit, uintptr(EV_ABS)); err != nil {
			return fmt.Errorf("registering EV_ABS: %w", err)
		}
		for _, axis := range cfg.Axes {
			if err := ioctl(file, uiSetAbsBit, uintptr(axis.Code)); err != nil {
				return fmt.Errorf("registering axis %s: %w", AbsCodeName(axis.Code), err)
			}
		}
	}
	for _, prop := range cfg.Properties {
		if err := ioctl(file, uiSetPropBit, uintptr(prop)); err != nil {
			return fmt.Errorf("registering property 0x%x: %w", prop, err)
		}
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, newUserDev(cfg)); err != nil {
		return fmt.Errorf("encoding device setup: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing device setup: %w", err)
	}
	if err := ioctl(file, uiDevCreate, 0); err != nil {
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

func newUserDev(cfg Config) userDev {
	dev := userDev{
		ID: inputID{
			Bustype: cfg.Bus,
			Vendor:  cfg.Vendor,
			Product: cfg.Product,
			Version: cfg.Version,
		},
	}
	copy(dev.Name[:], cfg.Name)
	for _, axis := range cfg.Axes {
		if axis.Code >= absCount {
			continue
		}
		dev.Absmin[axis.Code] = axis.Minimum
		dev.Absmax[axis.Code] = axis.Maximum
	}
	return dev
}

// WriteEvent queues one event. The kernel delivers the batch to readers on
// the next SYN_REPORT.
func (d *Device) WriteEvent(typ, code uint16, value int32) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, inputEvent{Type: typ, Code: code, Value: value}); err != nil {
		return err
	}
	_, err := d.file.Write(buf.Bytes())
	return err
}

func (d *Device) Close() error {
	_ = ioctl(d.file, uiDevDestroy, 0)
	return d.file.Close()
}

func ioctl(file *os.File, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, file.Fd(), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
