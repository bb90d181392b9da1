// Package lineproto encodes notifications into the two line formats the
// service speaks: the comma-separated wire line pushed to live clients and the
// pipe-separated record appended to offline logs.
//
// Both formats escape the backslash, their own separator, CR and LF inside a
// field, so a field can never split a line or a record. Fields made of plain
// characters are written verbatim. On decode a backslash that does not start a
// known escape is kept as a literal character, which keeps unescaped legacy
// records readable.
package lineproto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
)

const (
	WirePrefix = "NOTIFICATION"

	wireSep   = ','
	recordSep = '|'

	wireFields   = 7 // prefix + six payload fields
	recordFields = 7
)

// EncodeWire renders n as NOTIFICATION,<kind>,<message>,<room>,<date>,<weekday>,<timeSlot>.
func EncodeWire(n domain.Notification) string {
	return join(wireSep, WirePrefix, string(n.Kind), n.Message, n.Room, n.Date, n.Weekday, n.TimeSlot)
}

// DecodeWire parses a wire line. The result carries no recipient, display
// name or timestamp because the wire line does not transport them.
func DecodeWire(line string) (domain.Notification, error) {
	parts := split(strings.TrimRight(line, "\r\n"), wireSep)
	if len(parts) != wireFields || parts[0] != WirePrefix {
		return domain.Notification{}, fmt.Errorf("%w: wire line has %d fields", domain.ErrMalformedRecord, len(parts))
	}
	kind, err := domain.ParseKind(parts[1])
	if err != nil {
		return domain.Notification{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return domain.Notification{
		Kind:     kind,
		Message:  parts[2],
		Room:     parts[3],
		Date:     parts[4],
		Weekday:  parts[5],
		TimeSlot: parts[6],
	}, nil
}

// EncodeRecord renders n as <kind>|<message>|<room>|<date>|<weekday>|<timeSlot>|<epochMillis>.
// A zero CreatedAt is stamped with the current time.
func EncodeRecord(n domain.Notification) string {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return join(recordSep, string(n.Kind), n.Message, n.Room, n.Date, n.Weekday, n.TimeSlot,
		strconv.FormatInt(created.UnixMilli(), 10))
}

// DecodeRecord parses one offline record for recipient. Records written
// without the trailing timestamp are accepted with a zero CreatedAt. Legacy
// records with more than seven fields keep the first six and take the
// timestamp from the last field when it parses.
func DecodeRecord(recipient, line string) (domain.Notification, error) {
	parts := split(strings.TrimRight(line, "\r\n"), recordSep)
	if len(parts) < recordFields-1 {
		return domain.Notification{}, fmt.Errorf("%w: record has %d fields", domain.ErrMalformedRecord, len(parts))
	}
	kind, err := domain.ParseKind(parts[0])
	if err != nil {
		return domain.Notification{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}

	n := domain.Notification{
		Recipient: recipient,
		Kind:      kind,
		Message:   parts[1],
		Room:      parts[2],
		Date:      parts[3],
		Weekday:   parts[4],
		TimeSlot:  parts[5],
	}
	switch {
	case len(parts) == recordFields:
		millis, err := strconv.ParseInt(parts[6], 10, 64)
		if err != nil {
			return domain.Notification{}, fmt.Errorf("%w: bad timestamp %q", domain.ErrMalformedRecord, parts[6])
		}
		n.CreatedAt = time.UnixMilli(millis)
	case len(parts) > recordFields:
		if millis, err := strconv.ParseInt(parts[len(parts)-1], 10, 64); err == nil {
			n.CreatedAt = time.UnixMilli(millis)
		}
	}
	return n, nil
}

// IsRecordLine reports whether line can hold a record. Blank lines and lines
// starting with '#' never do.
func IsRecordLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}

func join(sep byte, fields ...string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(sep)
		}
		escapeInto(&b, f, sep)
	}
	return b.String()
}

func escapeInto(b *strings.Builder, s string, sep byte) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case sep:
			b.WriteByte('\\')
			b.WriteByte(sepCode(sep))
		default:
			b.WriteByte(c)
		}
	}
}

// split cuts s on unescaped sep and unescapes every field.
func split(s string, sep byte) []string {
	fields := make([]string, 0, recordFields)
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == sep {
			fields = append(fields, cur.String())
			cur.Reset()
			continue
		}
		if c != '\\' {
			cur.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			cur.WriteByte('\\')
			break
		}
		i++
		switch s[i] {
		case '\\':
			cur.WriteByte('\\')
		case 'n':
			cur.WriteByte('\n')
		case 'r':
			cur.WriteByte('\r')
		case sepCode(sep):
			cur.WriteByte(sep)
		default:
			cur.WriteByte('\\')
			i--
		}
	}
	return append(fields, cur.String())
}

func sepCode(sep byte) byte {
	if sep == recordSep {
		return 'p'
	}
	return 'c'
}
