// Copyright 2025 Ewout Prangsma
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
//
// Author Ewout Prangsma
//

package analyzer

import (
	"fmt"
	"strings"
)

const (
	// ButtonKey is the key of the main button code in Result.Buttons.
	ButtonKey = "button1"
)

// value returns the integer formed by the given bits.
func value(bits []byte, lsbFirst bool) uint64 {
	var v uint64
	n := len(bits)
	for i, b := range bits {
		if b == 0 {
			continue
		}
		if lsbFirst {
			v |= 1 << uint(i)
		} else {
			v |= 1 << uint(n-1-i)
		}
	}
	return v
}

// toBytes groups the bits in bytes. Trailing bits that do not
// form a complete byte are ignored.
func toBytes(bits []byte, lsbFirst bool) []byte {
	result := make([]byte, 0, len(bits)/8)
	for i := 0; i+8 <= len(bits); i += 8 {
		result = append(result, byte(value(bits[i:i+8], lsbFirst)))
	}
	return result
}

// hexBytes renders the bytes as "0x" followed by 2 hex digits per byte.
func hexBytes(data []byte) string {
	var sb strings.Builder
	sb.WriteString("0x")
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// hexValue renders v with enough digits for the given number of bits.
func hexValue(v uint64, bitCount int) string {
	digits := (bitCount + 3) / 4
	if digits < 2 {
		digits = 2
	}
	return fmt.Sprintf("0x%0*X", digits, v)
}

// decodeNEC decodes address, ~address, command, ~command.
// An address byte that is not followed by its complement is taken as
// a 16-bit extended address.
func decodeNEC(bits []byte, r *Result) {
	data := toBytes(bits[:32], true)
	addr, addrInv, cmd, cmdInv := data[0], data[1], data[2], data[3]
	raw := value(bits[:32], false)

	var address string
	var canonical string
	if addrInv == ^addr {
		address = fmt.Sprintf("0x%02X", addr)
		canonical = fmt.Sprintf("0x%02X%02X", addr, cmd)
	} else {
		ext := uint16(addr) | uint16(addrInv)<<8
		address = fmt.Sprintf("0x%04X", ext)
		canonical = fmt.Sprintf("0x%04X%02X", ext, cmd)
	}
	if cmdInv != ^cmd {
		r.warn("command complement mismatch: 0x%02X, 0x%02X", cmd, cmdInv)
	}
	r.Buttons[ButtonKey] = []string{canonical, fmt.Sprintf("0x%08X", raw)}
	r.Buttons["address"] = []string{address}
	r.Buttons["command"] = []string{fmt.Sprintf("0x%02X", cmd)}
}

// decodeAEHA decodes a 16-bit customer code, a 4-bit parity and data bytes.
func decodeAEHA(bits []byte, r *Result) {
	if len(bits)%8 != 0 {
		r.warn("%d trailing bits ignored", len(bits)%8)
	}
	data := toBytes(bits, true)
	msbFirst := toBytes(bits, false)
	customer := uint16(data[0]) | uint16(data[1])<<8
	parity := (data[0] ^ (data[0] >> 4) ^ data[1] ^ (data[1] >> 4)) & 0x0F
	if parity != data[2]&0x0F {
		r.warn("customer parity mismatch: expected 0x%X, got 0x%X", parity, data[2]&0x0F)
	}
	r.Buttons[ButtonKey] = []string{hexBytes(data), hexBytes(msbFirst)}
	r.Buttons["customer"] = []string{fmt.Sprintf("0x%04X", customer)}
	r.Buttons["data"] = []string{hexBytes(data[3:])}
}

// decodeSONY decodes a 7-bit command followed by a 5, 8 or 13-bit address.
func decodeSONY(bits []byte, r *Result) {
	n := len(bits)
	switch n {
	case 12, 15, 20:
		// Standard lengths
	default:
		r.warn("non-standard bit count %d", n)
	}
	r.Buttons[ButtonKey] = []string{
		hexValue(value(bits, true), n),
		hexValue(value(bits, false), n),
	}
	r.Buttons["command"] = []string{hexValue(value(bits[:7], true), 7)}
	r.Buttons["address"] = []string{hexValue(value(bits[7:], true), n-7)}
}
