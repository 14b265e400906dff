// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/gatehouse/lib/codec"
)

// CompressionTag identifies the compression wrapping an export
// stream. The tag is the stream's first byte; everything after it is
// the (possibly compressed) frame sequence. These values are protocol
// constants — changing them breaks previously exported journals.
type CompressionTag uint8

const (
	// CompressionNone streams frames uncompressed.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 wraps the frames in an LZ4 frame stream. Fast,
	// modest ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd wraps the frames in a zstd stream. Better
	// ratio for the journal's repetitive text at more CPU.
	CompressionZstd CompressionTag = 2
)

// String returns the tag's wire name, as used in the export
// endpoint's compression query parameter.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a tag from its wire name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("journal: unknown compression tag %q", name)
	}
}

func (tag CompressionTag) valid() bool {
	switch tag {
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return true
	}
	return false
}

// maxExportFrameSize bounds a single frame on read. Journal records
// are tiny; anything near this is a corrupt or hostile stream.
const maxExportFrameSize = 1 << 20

// AdmissionRecord is one stored admission row as exported.
type AdmissionRecord struct {
	Time           int64  `cbor:"1,keyasint"`
	Route          string `cbor:"2,keyasint"`
	Policy         string `cbor:"3,keyasint"`
	IdentityDigest string `cbor:"4,keyasint"`
	Admitted       bool   `cbor:"5,keyasint"`
	Reason         string `cbor:"6,keyasint"`
}

// CredentialRecord is one stored credential row as exported.
type CredentialRecord struct {
	Time          int64  `cbor:"1,keyasint"`
	Operation     string `cbor:"2,keyasint"`
	SubjectDigest string `cbor:"3,keyasint"`
	Kind          string `cbor:"4,keyasint"`
	ExpiresAt     int64  `cbor:"5,keyasint"`
	Outcome       string `cbor:"6,keyasint"`
}

// ExportRecord is one frame of an export stream. Exactly one of
// Admission and Credential is set.
type ExportRecord struct {
	Admission  *AdmissionRecord  `cbor:"1,keyasint,omitempty"`
	Credential *CredentialRecord `cbor:"2,keyasint,omitempty"`
}

// Export streams the whole journal to w: one tag byte, then
// length-prefixed CBOR frames (4-byte big-endian length, payload),
// then a zero-length terminator frame. Admission rows come first,
// then credential rows, each ordered by timestamp. The frame sequence
// is compressed per tag; the tag byte itself is not.
func (s *Store) Export(ctx context.Context, w io.Writer, tag CompressionTag) error {
	frameSink, finish, err := compressionWriter(w, tag)
	if err != nil {
		return err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: export: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT ts, route, policy, identity_digest,
		admitted, reason FROM admission ORDER BY ts`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			return writeExportRecord(frameSink, ExportRecord{Admission: &AdmissionRecord{
				Time:           stmt.ColumnInt64(0),
				Route:          stmt.ColumnText(1),
				Policy:         stmt.ColumnText(2),
				IdentityDigest: stmt.ColumnText(3),
				Admitted:       stmt.ColumnInt64(4) != 0,
				Reason:         stmt.ColumnText(5),
			}})
		},
	})
	if err != nil {
		return fmt.Errorf("journal: exporting admission rows: %w", err)
	}

	err = sqlitex.Execute(conn, `SELECT ts, op, subject_digest, kind,
		expires_at, outcome FROM credential ORDER BY ts`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			return writeExportRecord(frameSink, ExportRecord{Credential: &CredentialRecord{
				Time:          stmt.ColumnInt64(0),
				Operation:     stmt.ColumnText(1),
				SubjectDigest: stmt.ColumnText(2),
				Kind:          stmt.ColumnText(3),
				ExpiresAt:     stmt.ColumnInt64(4),
				Outcome:       stmt.ColumnText(5),
			}})
		},
	})
	if err != nil {
		return fmt.Errorf("journal: exporting credential rows: %w", err)
	}

	if err := writeTerminator(frameSink); err != nil {
		return err
	}
	return finish()
}

// ReadExport consumes a complete export stream and returns its
// records. Counterpart to Export; used by operator tooling and tests.
func ReadExport(r io.Reader) ([]ExportRecord, error) {
	var tagByte [1]byte
	if _, err := io.ReadFull(r, tagByte[:]); err != nil {
		return nil, fmt.Errorf("journal: reading compression tag: %w", err)
	}
	tag := CompressionTag(tagByte[0])

	var frames io.Reader
	switch tag {
	case CompressionNone:
		frames = r
	case CompressionLZ4:
		frames = lz4.NewReader(r)
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("journal: zstd reader: %w", err)
		}
		defer decoder.Close()
		frames = decoder
	default:
		return nil, fmt.Errorf("journal: unsupported compression tag %d", tag)
	}

	var records []ExportRecord
	for {
		payload, err := readFrame(frames)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		var record ExportRecord
		if err := codec.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("journal: decoding export record: %w", err)
		}
		records = append(records, record)
	}
}

// compressionWriter writes the tag byte to w and returns the writer
// frames go to, plus a finish function that flushes the compressor.
func compressionWriter(w io.Writer, tag CompressionTag) (io.Writer, func() error, error) {
	if !tag.valid() {
		return nil, nil, fmt.Errorf("journal: unsupported compression tag %d", tag)
	}
	if _, err := w.Write([]byte{byte(tag)}); err != nil {
		return nil, nil, fmt.Errorf("journal: writing compression tag: %w", err)
	}

	switch tag {
	case CompressionLZ4:
		compressor := lz4.NewWriter(w)
		return compressor, compressor.Close, nil
	case CompressionZstd:
		compressor, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("journal: zstd writer: %w", err)
		}
		return compressor, compressor.Close, nil
	default:
		return w, func() error { return nil }, nil
	}
}

func writeExportRecord(w io.Writer, record ExportRecord) error {
	payload, err := codec.Marshal(&record)
	if err != nil {
		return fmt.Errorf("journal: encoding export record: %w", err)
	}
	return writeFrame(w, payload)
}

// writeFrame writes one length-prefixed frame.
func writeFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("journal: writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("journal: writing frame payload: %w", err)
	}
	return nil
}

// writeTerminator writes the zero-length end-of-stream frame.
func writeTerminator(w io.Writer) error {
	var header [4]byte
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("journal: writing terminator frame: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame. Returns io.EOF at the
// zero-length terminator; a stream that ends without one reports
// io.ErrUnexpectedEOF.
func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, io.EOF
	}
	if length > maxExportFrameSize {
		return nil, fmt.Errorf("journal: export frame of %d bytes exceeds limit", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("journal: truncated export frame: %w", err)
	}
	return payload, nil
}
