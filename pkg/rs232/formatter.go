// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a decoded frame into a human-readable string
func FormatFrame(f Frame) string {
	switch v := f.(type) {
	case *ConfigFrame:
		result := fmt.Sprintf("[%s] %s model=%s version=%s len=%d\n",
			timestamp(v.Timestamp), v.Kind(), v.Model, v.Version, len(v.Payload))
		result += fmt.Sprintf("  State: %s", v.Readiness)
		if v.CannotWake {
			result += " (RS-232 cannot wake system)"
		}
		result += "\n"
		result += fmt.Sprintf("  Checksum: %s\n", v.Checksum)
		return result

	case *Report:
		result := fmt.Sprintf("[%s] %s code=%s data=%s\n", timestamp(v.Timestamp), v.Kind(), v.Code, v.Data)
		result += fmt.Sprintf("  Category: %q, Guard: %q\n", v.Category, v.Guard)
		if !v.Valid {
			result += "  >>> MISSING TERMINATOR <<<\n"
		}
		return result

	case Powersave:
		return fmt.Sprintf("[%s] %s (send next command twice)\n", timestamp(time.Time{}), v.Kind())

	case Unexpected:
		return fmt.Sprintf("[%s] %s byte=0x%02X\n", timestamp(time.Time{}), v.Kind(), v.Byte)
	}
	return "UNKNOWN\n"
}

// FormatBytes renders raw wire bytes with control characters named, e.g. <STX>07A1D<ETX>
func FormatBytes(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		switch b {
		case STX:
			sb.WriteString("<STX>")
		case ETX:
			sb.WriteString("<ETX>")
		case DC1:
			sb.WriteString("<DC1>")
		case DC2:
			sb.WriteString("<DC2>")
		case Null:
			sb.WriteString("<NUL>")
		default:
			if b < 0x20 || b > 0x7E {
				fmt.Fprintf(&sb, "<%02X>", b)
			} else {
				sb.WriteByte(b)
			}
		}
	}
	return sb.String()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("15:04:05.000")
}
