package validate

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// jsonValue converts a parsed document into plain Go values. Numbers become
// float64 only when re-encoding the float gives back the same decimal
// value; anything else (64-bit seeds, overflowing exponents, long
// fractions) is kept as a json.Number holding the client's text.
func jsonValue(res gjson.Result) any {
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.String:
		return res.Str
	case gjson.Number:
		return number(res.Raw)
	}
	if res.IsArray() {
		out := []any{}
		res.ForEach(func(_, v gjson.Result) bool {
			out = append(out, jsonValue(v))
			return true
		})
		return out
	}
	out := map[string]any{}
	res.ForEach(func(k, v gjson.Result) bool {
		out[k.Str] = jsonValue(v)
		return true
	})
	return out
}

func number(raw string) any {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return json.Number(raw)
	}
	rawDigits, rawExp, ok := decimal(raw)
	if !ok {
		return json.Number(raw)
	}
	fDigits, fExp, _ := decimal(strconv.FormatFloat(f, 'e', -1, 64))
	if rawDigits != fDigits || (rawDigits != "" && rawExp != fExp) {
		return json.Number(raw)
	}
	return f
}

// decimal reduces a JSON number to significant digits and a base-10
// exponent, so "1.50", "15e-1" and "1.5" compare equal. Zero has no digits.
// The sign is ignored: ParseFloat keeps it and it survives re-encoding.
func decimal(s string) (digits string, exp int, ok bool) {
	s = strings.TrimLeft(s, "+-")
	mant := s
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant = s[:i]
		e, err := strconv.Atoi(strings.TrimPrefix(s[i+1:], "+"))
		if err != nil {
			return "", 0, false
		}
		exp = e
	}
	if i := strings.IndexByte(mant, '.'); i >= 0 {
		exp -= len(mant) - i - 1
		mant = mant[:i] + mant[i+1:]
	}
	mant = strings.TrimLeft(mant, "0")
	for strings.HasSuffix(mant, "0") {
		mant = mant[:len(mant)-1]
		exp++
	}
	return mant, exp, true
}
