// Copyright 2026 The SensorBridge Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ihex

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record framing sizes in decoded bytes: length(1) + address(2) + type(1)
// before the data, checksum(1) after it.
const (
	recordHeaderSize   = 4
	recordChecksumSize = 1
	minRecordSize      = recordHeaderSize + recordChecksumSize
)

var (
	errMissingEOF      = errors.New("missing end-of-file record")
	errNoDataRecords   = errors.New("no data records in image")
	errRecordAfterEOF  = errors.New("record after end-of-file record")
	errRecordsOutOfOrd = errors.New("data records out of address order")
)

// ParseFile parses an Intel-HEX firmware image from the given path
func ParseFile(path string) (*Image, error) {
	f, err := os.Open(path) // #nosec G304 -- caller supplies the firmware image path
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse parses an Intel-HEX firmware image from any io.Reader
func Parse(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	img := &Image{}

	var extBase uint32
	var lastEnd uint32
	eofSeen := false

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if eofSeen {
			return nil, &ParseError{Line: lineNum, Err: errRecordAfterEOF}
		}

		raw, err := decodeLine(line)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Err: err}
		}

		length := raw[0]
		addr := binary.BigEndian.Uint16(raw[1:3])
		recType := RecordType(raw[3])
		data := raw[recordHeaderSize : len(raw)-recordChecksumSize]

		switch recType {
		case RecordData:
			abs := extBase + uint32(addr)
			if len(img.records) > 0 && abs < lastEnd {
				return nil, &ParseError{Line: lineNum, Err: errRecordsOutOfOrd}
			}
			rec := Record{Address: abs, Data: append([]byte(nil), data...)}
			img.records = append(img.records, rec)
			img.size += len(data)
			lastEnd = rec.End()
		case RecordEOF:
			if length != 0 {
				return nil, &ParseError{Line: lineNum,
					Err: fmt.Errorf("end-of-file record carries %d data bytes", length)}
			}
			eofSeen = true
		case RecordExtendedSegment:
			if len(data) != 2 {
				return nil, &ParseError{Line: lineNum,
					Err: fmt.Errorf("extended segment record has %d data bytes, expected 2", len(data))}
			}
			extBase = uint32(binary.BigEndian.Uint16(data)) << 4
		case RecordExtendedLinear:
			if len(data) != 2 {
				return nil, &ParseError{Line: lineNum,
					Err: fmt.Errorf("extended linear record has %d data bytes, expected 2", len(data))}
			}
			extBase = uint32(binary.BigEndian.Uint16(data)) << 16
		case RecordStartSegment, RecordStartLinear:
			// Entry-point records are irrelevant for flashing
		default:
			return nil, &ParseError{Line: lineNum,
				Err: fmt.Errorf("unknown record type 0x%02X", byte(recType))}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if !eofSeen {
		if lineNum == 0 {
			return nil, errors.New("empty file")
		}
		return nil, errMissingEOF
	}
	if len(img.records) == 0 {
		return nil, errNoDataRecords
	}

	return img, nil
}

// decodeLine hex-decodes one record line and validates its framing, declared
// length and checksum.
func decodeLine(line string) ([]byte, error) {
	if line[0] != ':' {
		return nil, fmt.Errorf("record does not start with ':'")
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	if len(raw) < minRecordSize {
		return nil, fmt.Errorf("record too short: %d bytes", len(raw))
	}

	if want := int(raw[0]); len(raw) != minRecordSize+want {
		return nil, fmt.Errorf("declared %d data bytes, record carries %d",
			want, len(raw)-minRecordSize)
	}

	// The checksum byte is the two's complement of the record sum, so the
	// full line must sum to zero
	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return nil, fmt.Errorf("record checksum mismatch")
	}

	return raw, nil
}
