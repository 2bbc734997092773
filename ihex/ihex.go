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

// Package ihex loads firmware images from Intel-HEX files for SHDLC
// firmware updates. Records are validated line by line (record checksum,
// declared length, address ordering) and malformed input fails fast with
// the offending line number.
package ihex

import "fmt"

// RecordType identifies an Intel-HEX record type
type RecordType byte

// Record types handled by the parser. Start-address records (types 0x03 and
// 0x05) carry no flash data and are skipped.
const (
	RecordData            RecordType = 0x00
	RecordEOF             RecordType = 0x01
	RecordExtendedSegment RecordType = 0x02
	RecordStartSegment    RecordType = 0x03
	RecordExtendedLinear  RecordType = 0x04
	RecordStartLinear     RecordType = 0x05
)

// Record is one data record with its absolute target address resolved from
// any preceding extended-address records.
type Record struct {
	Data    []byte
	Address uint32
}

// End returns the address one past the last byte of the record
func (r Record) End() uint32 {
	return r.Address + uint32(len(r.Data))
}

// Image is a parsed firmware image: an ordered sequence of data records
// terminated by exactly one end-of-file record.
type Image struct {
	records []Record
	size    int
}

// DataRecords returns the image's data records in address order
func (img *Image) DataRecords() []Record {
	return img.records
}

// Size returns the total number of firmware data bytes in the image
func (img *Image) Size() int {
	return img.size
}

// AddressRange returns the lowest and one past the highest target address
func (img *Image) AddressRange() (start, end uint32) {
	if len(img.records) == 0 {
		return 0, 0
	}
	return img.records[0].Address, img.records[len(img.records)-1].End()
}

// ParseError describes a malformed line in a hex file
type ParseError struct {
	Err  error
	Line int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
