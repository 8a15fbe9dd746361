package handlers

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Encoding names a sniffed text encoding.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
	EncodingLatin1  Encoding = "latin-1"
)

// DetectEncoding sniffs the encoding of raw bytes from BOMs and byte shape.
func DetectEncoding(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return EncodingUTF8
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return EncodingUTF16BE
	}

	if utf8.Valid(data) {
		return EncodingUTF8
	}

	// UTF-16 without a BOM shows as alternating NUL bytes in ASCII text.
	nulEven, nulOdd := 0, 0
	for i, b := range data {
		if b != 0 {
			continue
		}
		if i%2 == 0 {
			nulEven++
		} else {
			nulOdd++
		}
	}
	if nulOdd > len(data)/8 && nulEven == 0 {
		return EncodingUTF16LE
	}
	if nulEven > len(data)/8 && nulOdd == 0 {
		return EncodingUTF16BE
	}

	return EncodingLatin1
}

// DecodeText converts raw bytes to a UTF-8 string under the sniffed encoding.
func DecodeText(data []byte) string {
	switch DetectEncoding(data) {
	case EncodingUTF16LE:
		return decodeUTF16(bytes.TrimPrefix(data, []byte{0xFF, 0xFE}), true)
	case EncodingUTF16BE:
		return decodeUTF16(bytes.TrimPrefix(data, []byte{0xFE, 0xFF}), false)
	case EncodingLatin1:
		var b strings.Builder
		b.Grow(len(data))
		for _, c := range data {
			b.WriteRune(rune(c))
		}
		return b.String()
	default:
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	}
}

func decodeUTF16(data []byte, littleEndian bool) string {
	var b strings.Builder
	b.Grow(len(data) / 2)

	for i := 0; i+1 < len(data); i += 2 {
		var u uint16
		if littleEndian {
			u = uint16(data[i]) | uint16(data[i+1])<<8
		} else {
			u = uint16(data[i])<<8 | uint16(data[i+1])
		}

		// Surrogate pairs.
		if u >= 0xD800 && u <= 0xDBFF && i+3 < len(data) {
			var lo uint16
			if littleEndian {
				lo = uint16(data[i+2]) | uint16(data[i+3])<<8
			} else {
				lo = uint16(data[i+2])<<8 | uint16(data[i+3])
			}
			if lo >= 0xDC00 && lo <= 0xDFFF {
				b.WriteRune(0x10000 + (rune(u)-0xD800)<<10 + (rune(lo) - 0xDC00))
				i += 2
				continue
			}
		}
		b.WriteRune(rune(u))
	}
	return b.String()
}

// delimiterCandidates in preference order.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// DetectDelimiter picks the delimiter whose per-line field count is most
// consistent across the sample lines. Defaults to comma.
func DetectDelimiter(sample string) rune {
	lines := nonEmptyLines(sample, 20)
	if len(lines) == 0 {
		return ','
	}

	best := ','
	bestScore := -1
	for _, cand := range delimiterCandidates {
		counts := make(map[int]int)
		for _, line := range lines {
			counts[strings.Count(line, string(cand))]++
		}

		// Score: lines agreeing on the dominant non-zero count.
		score := 0
		for count, freq := range counts {
			if count > 0 && freq > score {
				score = freq
			}
		}
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	return best
}

func nonEmptyLines(sample string, limit int) []string {
	var out []string
	for _, line := range strings.Split(sample, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Analysis summarizes the structural shape of a byte-window sample. The
// adaptive generator feeds it into its prompt.
type Analysis struct {
	Encoding     Encoding
	XMLPreamble  bool
	JSONLike     bool
	MarkupTags   bool
	TabDensity   float64
	CommaDensity float64
	DomainKeys   []string
	SampleText   string
}

// domainKeyMarkers are tokens that identify product-data exports.
var domainKeyMarkers = []string{
	"gtin", "ean", "sku", "artikelnummer", "preis", "price",
	"supplier_aid", "bmecat", "datanorm", "eldanorm",
}

// Analyze produces an Analysis from a raw sample window.
func Analyze(sample []byte) Analysis {
	text := DecodeText(sample)
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)

	a := Analysis{
		Encoding:    DetectEncoding(sample),
		XMLPreamble: strings.HasPrefix(trimmed, "<?xml"),
		JSONLike:    strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["),
		MarkupTags:  strings.Count(trimmed, "<") > 2 && strings.Count(trimmed, ">") > 2,
		SampleText:  text,
	}

	if len(trimmed) > 0 {
		a.TabDensity = float64(strings.Count(trimmed, "\t")) / float64(len(trimmed))
		a.CommaDensity = float64(strings.Count(trimmed, ",")) / float64(len(trimmed))
	}

	for _, marker := range domainKeyMarkers {
		if strings.Contains(lowered, marker) {
			a.DomainKeys = append(a.DomainKeys, marker)
		}
	}

	return a
}
