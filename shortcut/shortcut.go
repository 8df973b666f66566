// Package shortcut encodes and decodes Windows shell link (.lnk)
// files. Only the minimal profile needed to store and recover a link
// target is implemented: a fixed ShellLinkHeader followed by the
// RELATIVE_PATH string data, always in Unicode.
package shortcut

import (
	"encoding/binary"
	"errors"
	"os"
	"unicode/utf16"
)

// Codec serializes link-like objects. The filesystem depends on this
// interface so the on-disk artifact format stays pluggable.
type Codec interface {
	// Encode writes a shortcut at linkPath pointing to target.
	Encode(linkPath, target string, dir bool, size int64) error
	// Decode reads the target stored in the shortcut at linkPath.
	Decode(linkPath string) (string, error)
}

// ErrNotShortcut reports a file that is not a shell link.
var ErrNotShortcut = errors.New("shortcut: not a shell link file")

const headerSize = 76

// LinkFlags bits, per MS-SHLLINK.
const (
	flagHasLinkTargetIDList = 1 << 0
	flagHasLinkInfo         = 1 << 1
	flagHasName             = 1 << 2
	flagHasRelativePath     = 1 << 3
	flagHasWorkingDir       = 1 << 4
	flagHasArguments        = 1 << 5
	flagHasIconLocation     = 1 << 6
	flagIsUnicode           = 1 << 7
)

const fileAttributeDirectory = 0x10

// swShowNormal is the ShowCommand stored in every encoded link.
const swShowNormal = 1

var linkCLSID = [16]byte{
	0x01, 0x14, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46,
}

// ShellLinkCodec is the default Codec backed by plain files.
type ShellLinkCodec struct{}

// Encode writes a minimal shell link storing target as the link's
// relative path string.
func (ShellLinkCodec) Encode(linkPath, target string, dir bool, size int64) error {
	var attrs uint32
	if dir {
		attrs = fileAttributeDirectory
	}

	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], headerSize)
	copy(buf[4:], linkCLSID[:])
	binary.LittleEndian.PutUint32(buf[20:], flagHasRelativePath|flagIsUnicode)
	binary.LittleEndian.PutUint32(buf[24:], attrs)
	// CreationTime, AccessTime, WriteTime left zero.
	binary.LittleEndian.PutUint32(buf[52:], uint32(size))
	// IconIndex zero.
	binary.LittleEndian.PutUint32(buf[60:], swShowNormal)
	// HotKey and the reserved fields stay zero.

	units := utf16.Encode([]rune(target))
	str := make([]byte, 2+2*len(units))
	binary.LittleEndian.PutUint16(str[0:], uint16(len(units)))
	for i, u := range units {
		binary.LittleEndian.PutUint16(str[2+2*i:], u)
	}
	return os.WriteFile(linkPath, append(buf, str...), 0o666)
}

// Decode recovers the target from a shell link, skipping the optional
// structures other producers may have written before the string data.
func (ShellLinkCodec) Decode(linkPath string) (string, error) {
	data, err := os.ReadFile(linkPath)
	if err != nil {
		return "", err
	}
	if len(data) < headerSize ||
		binary.LittleEndian.Uint32(data[0:]) != headerSize ||
		string(data[4:20]) != string(linkCLSID[:]) {
		return "", ErrNotShortcut
	}
	flags := binary.LittleEndian.Uint32(data[20:])
	off := headerSize

	if flags&flagHasLinkTargetIDList != 0 {
		if len(data) < off+2 {
			return "", ErrNotShortcut
		}
		off += 2 + int(binary.LittleEndian.Uint16(data[off:]))
	}
	if flags&flagHasLinkInfo != 0 {
		if len(data) < off+4 {
			return "", ErrNotShortcut
		}
		off += int(binary.LittleEndian.Uint32(data[off:]))
	}

	// String data appears in a fixed order; NAME_STRING precedes
	// RELATIVE_PATH.
	if flags&flagHasName != 0 {
		skip, err := stringDataLen(data, off, flags)
		if err != nil {
			return "", err
		}
		off += skip
	}
	if flags&flagHasRelativePath == 0 {
		return "", ErrNotShortcut
	}
	return readStringData(data, off, flags)
}

func stringDataLen(data []byte, off int, flags uint32) (int, error) {
	if len(data) < off+2 {
		return 0, ErrNotShortcut
	}
	count := int(binary.LittleEndian.Uint16(data[off:]))
	if flags&flagIsUnicode != 0 {
		return 2 + 2*count, nil
	}
	return 2 + count, nil
}

func readStringData(data []byte, off int, flags uint32) (string, error) {
	if len(data) < off+2 {
		return "", ErrNotShortcut
	}
	count := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if flags&flagIsUnicode == 0 {
		if len(data) < off+count {
			return "", ErrNotShortcut
		}
		return string(data[off : off+count]), nil
	}
	if len(data) < off+2*count {
		return "", ErrNotShortcut
	}
	units := make([]uint16, count)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[off+2*i:])
	}
	return string(utf16.Decode(units)), nil
}
