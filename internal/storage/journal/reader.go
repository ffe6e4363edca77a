package journal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Reader reads one session journal front to back.
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	header Header
	sealed bool
}

// Open opens a journal and reads its header. A journal whose writer did not
// close cleanly is readable up to its last complete entry.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	sealed, dataLen, err := verifyTrailer(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r := &Reader{
		file:   f,
		reader: bufio.NewReader(io.NewSectionReader(f, MagicBytesSize, dataLen-MagicBytesSize)),
		sealed: sealed,
	}

	t, payload, err := r.readEntry()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, err
	}
	if t != EntryTypeHeader {
		f.Close()
		return nil, ErrMissingHeader
	}
	if r.header, err = decodeHeader(payload); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the session header.
func (r *Reader) Header() Header {
	return r.header
}

// Sealed reports whether the journal carries a valid checksum trailer.
func (r *Reader) Sealed() bool {
	return r.sealed
}

// Read returns the next frame, or io.EOF after the last one.
func (r *Reader) Read() (Frame, error) {
	t, payload, err := r.readEntry()
	if err != nil {
		return Frame{}, err
	}
	if t != EntryTypeFrame {
		return Frame{}, fmt.Errorf("%w: %d after header", ErrInvalidEntryType, t)
	}
	return decodeConfirmed(payload)
}

// ReadAll reads every remaining frame.
func (r *Reader) ReadAll() ([]Frame, error) {
	var out []Frame
	for {
		f, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, f)
	}
}

// Close closes the journal file.
func (r *Reader) Close() error {
	return r.file.Close()
}

func (r *Reader) readEntry() (EntryType, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.reader, lenBuf[:]); err != nil {
		return 0, nil, r.endOfData(err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 5 {
		return 0, nil, ErrCorruptedEntry
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r.reader, frame); err != nil {
		return 0, nil, r.endOfData(err)
	}
	return decodeFrame(frame)
}

// endOfData maps a short read to io.EOF for a torn tail of an unsealed
// journal and to ErrCorruptedEntry for a sealed one.
func (r *Reader) endOfData(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		if r.sealed {
			return ErrCorruptedEntry
		}
		return io.EOF
	}
	return err
}

// verifyTrailer checks the magic and reports whether the file ends with a
// valid BLAKE2b-256 trailer, and the length of the data before it.
func verifyTrailer(f *os.File, size int64) (sealed bool, dataLen int64, err error) {
	if size < MagicBytesSize {
		return false, 0, ErrInvalidMagic
	}
	magic := make([]byte, MagicBytesSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, MagicBytesSize), magic); err != nil {
		return false, 0, fmt.Errorf("journal: read magic: %w", err)
	}
	if string(magic) != MagicBytes {
		return false, 0, ErrInvalidMagic
	}
	if size < MagicBytesSize+ChecksumSize {
		return false, size, nil
	}

	trailer := make([]byte, ChecksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, size-ChecksumSize, ChecksumSize), trailer); err != nil {
		return false, 0, fmt.Errorf("journal: read checksum trailer: %w", err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return false, 0, err
	}
	dataLen = size - ChecksumSize
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, dataLen), dataLen); err != nil {
		return false, 0, fmt.Errorf("journal: hash: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), trailer) {
		return false, size, nil
	}
	return true, dataLen, nil
}
