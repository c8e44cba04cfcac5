package importers

import "strings"

// NormalizeISBN cleans a raw identifier and returns its canonical digit form.
// Spreadsheet formula wrappers (="..."), quotes, hyphens and spaces are
// removed first. The result is a 10 or 13 character string with a valid check
// digit, or "" when the input is not a valid ISBN-10/13.
func NormalizeISBN(raw string) string {
	s := stripFormulaWrapper(raw)
	if s == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		case r == '-' || r == ' ' || r == '\t':
		default:
			return ""
		}
	}

	isbn := b.String()
	switch len(isbn) {
	case 10:
		if validISBN10(isbn) {
			return isbn
		}
	case 13:
		if validISBN13(isbn) {
			return isbn
		}
	}
	return ""
}

// ToISBN13 returns the ISBN-13 form of a normalized ISBN. ISBN-13 input is
// returned unchanged; anything else yields "".
func ToISBN13(isbn string) string {
	switch len(isbn) {
	case 13:
		return isbn
	case 10:
		body := "978" + isbn[:9]
		return body + string(isbn13CheckDigit(body))
	}
	return ""
}

// ToISBN10 returns the ISBN-10 form of a normalized 978-prefixed ISBN-13.
// ISBN-10 input is returned unchanged. 979-prefixed numbers have no
// ISBN-10 form and yield "".
func ToISBN10(isbn string) string {
	switch len(isbn) {
	case 10:
		return isbn
	case 13:
		if !strings.HasPrefix(isbn, "978") {
			return ""
		}
		body := isbn[3:12]
		return body + string(isbn10CheckDigit(body))
	}
	return ""
}

// stripFormulaWrapper removes the ="..." quoting some spreadsheet exports use
// to keep leading zeros in identifier columns.
func stripFormulaWrapper(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "=")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func validISBN10(s string) bool {
	for i := 0; i < 9; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[9] == isbn10CheckDigit(s[:9])
}

func validISBN13(s string) bool {
	for i := 0; i < 13; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[12] == isbn13CheckDigit(s[:12])
}

func isbn10CheckDigit(body string) byte {
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(body[i]-'0') * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return 'X'
	}
	return byte('0' + check)
}

func isbn13CheckDigit(body string) byte {
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(body[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10)
}
