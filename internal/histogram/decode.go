package histogram

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// CountsKey is the response key whose object value holds the counts.
const CountsKey = "counts"

var (
	// ErrMalformed is returned when the counts key is present but its value
	// is not an object or the object is never closed.
	ErrMalformed = errors.New("histogram: malformed counts object")

	// ErrPartial is returned together with a histogram of the well-formed
	// entries when some entries of the counts object had to be skipped.
	ErrPartial = errors.New("histogram: skipped malformed counts entries")
)

// Decode locates the "counts" key in a raw executor response and reads its
// object of quoted bitstrings mapped to unsigned integers. Everything else
// in the response is ignored. A response without the key decodes to an empty
// histogram and a nil error. Later duplicates of a bitstring overwrite
// earlier ones.
//
// An entry that is not a quoted key, a colon and an unsigned integer is
// skipped; the other entries are kept and the error wraps ErrPartial. A
// trailing comma before the closing brace is accepted.
func Decode(raw string) (*Histogram, error) {
	start, ok := findCountsObject(raw)
	if !ok {
		return Empty(), nil
	}
	d := decoder{src: raw, pos: start}
	counts, skipped, err := d.object()
	if err != nil {
		return nil, err
	}
	h := New(counts)
	if skipped > 0 {
		return h, fmt.Errorf("%w: %d", ErrPartial, skipped)
	}
	return h, nil
}

// findCountsObject returns the offset just past the '{' that opens the
// counts object. Occurrences of the quoted key that are not followed by a
// colon (for example, used as a value) are skipped.
func findCountsObject(raw string) (int, bool) {
	needle := `"` + CountsKey + `"`
	from := 0
	for {
		i := strings.Index(raw[from:], needle)
		if i < 0 {
			return 0, false
		}
		pos := skipSpace(raw, from+i+len(needle))
		if pos < len(raw) && raw[pos] == ':' {
			pos = skipSpace(raw, pos+1)
			if pos < len(raw) && raw[pos] == '{' {
				return pos + 1, true
			}
			// The key exists but its value is not an object.
			return len(raw), true
		}
		from += i + len(needle)
	}
}

type decoder struct {
	src string
	pos int
}

func (d *decoder) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformed, fmt.Sprintf(format, args...), d.pos)
}

// object reads entries up to the closing brace and returns them with the
// number of entries skipped.
func (d *decoder) object() (map[string]uint64, int, error) {
	counts := make(map[string]uint64)
	skipped := 0
	d.pos = skipSpace(d.src, d.pos)
	if d.pos >= len(d.src) {
		return nil, 0, d.errorf("expected object")
	}
	for {
		d.pos = skipSpace(d.src, d.pos)
		if d.pos >= len(d.src) {
			return nil, 0, d.errorf("unterminated object")
		}
		if d.src[d.pos] == '}' {
			return counts, skipped, nil
		}

		begin := d.pos
		key, v, err := d.entry()
		switch {
		case err == nil:
			counts[key] = v
		case d.skipEntry(begin):
			skipped++
		default:
			return nil, 0, d.errorf("unterminated object")
		}
		// d.pos is at ',' or '}'.
		if d.src[d.pos] == ',' {
			d.pos++
		}
	}
}

// entry reads one `"key": count` pair and leaves d.pos at the ',' or '}'
// that follows it.
func (d *decoder) entry() (string, uint64, error) {
	key, err := d.key()
	if err != nil {
		return "", 0, err
	}
	d.pos = skipSpace(d.src, d.pos)
	if d.pos >= len(d.src) || d.src[d.pos] != ':' {
		return "", 0, d.errorf("expected ':' after %q", key)
	}
	d.pos = skipSpace(d.src, d.pos+1)
	v, err := d.count()
	if err != nil {
		return "", 0, err
	}
	d.pos = skipSpace(d.src, d.pos)
	if d.pos >= len(d.src) {
		return "", 0, d.errorf("unterminated object")
	}
	if c := d.src[d.pos]; c != ',' && c != '}' {
		return "", 0, d.errorf("unexpected %q", c)
	}
	return key, v, nil
}

// skipEntry moves d.pos from begin to the ',' or '}' that ends the current
// entry, stepping over quoted strings and nested values. It reports false
// if the input ends first.
func (d *decoder) skipEntry(begin int) bool {
	depth := 0
	inString := false
	for pos := begin; pos < len(d.src); pos++ {
		c := d.src[pos]
		if inString {
			switch c {
			case '\\':
				pos++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '}':
			if depth == 0 {
				d.pos = pos
				return true
			}
			depth--
		case ',':
			if depth == 0 {
				d.pos = pos
				return true
			}
		}
	}
	return false
}

func (d *decoder) key() (string, error) {
	if d.pos >= len(d.src) || d.src[d.pos] != '"' {
		return "", d.errorf("expected quoted key")
	}
	end := strings.IndexByte(d.src[d.pos+1:], '"')
	if end < 0 {
		return "", d.errorf("unterminated key")
	}
	key := d.src[d.pos+1 : d.pos+1+end]
	if strings.IndexByte(key, '\\') >= 0 {
		return "", d.errorf("escaped key")
	}
	d.pos += end + 2
	return key, nil
}

func (d *decoder) count() (uint64, error) {
	begin := d.pos
	var v uint64
	for d.pos < len(d.src) && isDigit(d.src[d.pos]) {
		digit := uint64(d.src[d.pos] - '0')
		if v > (math.MaxUint64-digit)/10 {
			return 0, d.errorf("count overflows uint64")
		}
		v = v*10 + digit
		d.pos++
	}
	if d.pos == begin {
		return 0, d.errorf("expected unsigned integer")
	}
	return v, nil
}

func skipSpace(s string, pos int) int {
	for pos < len(s) {
		switch s[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
