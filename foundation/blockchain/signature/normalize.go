package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Normalize re-encodes raw JSON the way a browser parses and then
// stringifies it. Numbers take their shortest float64 form, strings lose
// optional escapes and object keys keep their first position with the last
// value, except integer keys which move to the front in ascending order.
func Normalize(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	out, err := normalizeValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the json value")
	}

	return out, nil
}

func normalizeValue(dec *json.Decoder) ([]byte, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return normalizeObject(dec)
		case '[':
			return normalizeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)

	case json.Number:
		return normalizeNumber(v)

	case string:
		return Marshal(v)

	case bool:
		return strconv.AppendBool(nil, v), nil

	case nil:
		return []byte("null"), nil
	}

	return nil, fmt.Errorf("unexpected token %v", tok)
}

func normalizeObject(dec *json.Decoder) ([]byte, error) {
	var keys []string
	values := make(map[string][]byte)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}

		value, err := normalizeValue(dec)
		if err != nil {
			return nil, err
		}

		if _, exists := values[key]; !exists {
			keys = append(keys, key)
		}
		values[key] = value
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := arrayIndex(keys[i])
		b, bok := arrayIndex(keys[j])
		if aok && bok {
			return a < b
		}
		return aok && !bok
	})

	buf := []byte{'{'}
	for i, key := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}

		k, err := Marshal(key)
		if err != nil {
			return nil, err
		}

		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, values[key]...)
	}

	return append(buf, '}'), nil
}

func normalizeArray(dec *json.Decoder) ([]byte, error) {
	buf := []byte{'['}

	for i := 0; dec.More(); i++ {
		if i > 0 {
			buf = append(buf, ',')
		}

		value, err := normalizeValue(dec)
		if err != nil {
			return nil, err
		}
		buf = append(buf, value...)
	}

	// Consume the closing bracket.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return append(buf, ']'), nil
}

// normalizeNumber formats the number as a float64. Out of range numbers
// become null and negative zero loses its sign.
func normalizeNumber(n json.Number) ([]byte, error) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, err
	}

	if math.IsInf(f, 0) {
		return []byte("null"), nil
	}

	if f == 0 {
		f = 0
	}

	return json.Marshal(f)
}

// arrayIndex reports whether the key is the canonical form of an array
// index, which objects order ahead of every other key.
func arrayIndex(key string) (uint64, bool) {
	if key == "" || len(key) > 10 || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}

	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}

	return n, true
}
