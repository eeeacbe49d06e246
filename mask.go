package remold

import (
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// MaskFunc rewrites a value so it can leave the process without exposing it.
type MaskFunc func(value string) string

// MaskEmail keeps the first character of the local part and the domain:
// alice@example.com -> a***@example.com.
func MaskEmail(value string) string {
	at := strings.LastIndex(value, "@")
	if at < 1 {
		return stars(value)
	}
	first := []rune(value[:at])[0]
	return string(first) + "***" + value[at:]
}

// MaskDigits keeps the last keep digits and replaces every other digit with
// '*', leaving separators in place: 123-45-6789 -> ***-**-6789.
func MaskDigits(keep int) MaskFunc {
	return func(value string) string {
		total := 0
		for _, r := range value {
			if unicode.IsDigit(r) {
				total++
			}
		}
		if total <= keep {
			return stars(value)
		}
		var b strings.Builder
		seen := 0
		for _, r := range value {
			if !unicode.IsDigit(r) {
				b.WriteRune(r)
				continue
			}
			seen++
			if seen > total-keep {
				b.WriteRune(r)
			} else {
				b.WriteByte('*')
			}
		}
		return b.String()
	}
}

// MaskEnds keeps head leading and tail trailing characters:
// MaskEnds(4, 4) turns GB82WEST12345698765432 into GB82**************5432.
func MaskEnds(head, tail int) MaskFunc {
	return func(value string) string {
		runes := []rune(value)
		if len(runes) <= head+tail {
			return stars(value)
		}
		return string(runes[:head]) + strings.Repeat("*", len(runes)-head-tail) + string(runes[len(runes)-tail:])
	}
}

// MaskIP keeps the network half of an address: the first two IPv4 octets or
// the first four IPv6 groups. Unparseable input is masked entirely.
func MaskIP(value string) string {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return stars(value)
	}
	if addr.Is4() {
		b := addr.As4()
		return strconv.Itoa(int(b[0])) + "." + strconv.Itoa(int(b[1])) + ".xxx.xxx"
	}
	groups := strings.Split(addr.StringExpanded(), ":")
	return strings.Join(groups[:4], ":") + ":xxxx:xxxx:xxxx:xxxx"
}

// MaskName keeps the first letter of each word: John Smith -> J*** S****.
func MaskName(value string) string {
	words := strings.Fields(value)
	for i, w := range words {
		r := []rune(w)
		words[i] = string(r[0]) + strings.Repeat("*", len(r)-1)
	}
	return strings.Join(words, " ")
}

func stars(value string) string {
	return strings.Repeat("*", len([]rune(value)))
}

// maskedCodec is one-way: encode stores the masked text, decode keeps it.
type maskedCodec struct {
	mask MaskFunc
}

// Masked returns a codec that writes string fields through mask. Decoding
// restores the stored text, so a decoded instance holds the masked value.
func Masked(mask MaskFunc) Codec {
	return maskedCodec{mask: mask}
}

// Redacted returns a codec that replaces string fields with replacement.
func Redacted(replacement string) Codec {
	return maskedCodec{mask: func(string) string { return replacement }}
}

func (c maskedCodec) Encode(_ *Encoder, v reflect.Value) (any, bool, error) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, true, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, true, nil
	}
	text, err := textBytes(v)
	if err != nil {
		return nil, false, err
	}
	return c.mask(string(text)), true, nil
}

func (c maskedCodec) Decode(_ *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		s, ok := doc.(string)
		if !ok {
			return reflect.Value{}, mismatch(doc, base)
		}
		return textValue([]byte(s), base)
	})
}
