package docstore

import (
	"fmt"
	"strconv"
	"time"
)

// wireValue is the typed-value envelope the document store speaks on the
// wire. Exactly one field is set per value. Integers travel as strings,
// matching the store's JSON encoding of 64-bit values.
type wireValue struct {
	NullValue      *string    `json:"nullValue,omitempty"`
	StringValue    *string    `json:"stringValue,omitempty"`
	IntegerValue   *string    `json:"integerValue,omitempty"`
	DoubleValue    *float64   `json:"doubleValue,omitempty"`
	BooleanValue   *bool      `json:"booleanValue,omitempty"`
	TimestampValue *time.Time `json:"timestampValue,omitempty"`
	ArrayValue     *wireArray `json:"arrayValue,omitempty"`
	MapValue       *wireMap   `json:"mapValue,omitempty"`
}

type wireArray struct {
	Values []wireValue `json:"values,omitempty"`
}

type wireMap struct {
	Fields map[string]wireValue `json:"fields,omitempty"`
}

// encodeValue wraps a plain Go value in the typed-value envelope.
func encodeValue(v any) (wireValue, error) {
	switch val := v.(type) {
	case nil:
		null := "NULL_VALUE"
		return wireValue{NullValue: &null}, nil
	case string:
		return wireValue{StringValue: &val}, nil
	case int:
		s := strconv.FormatInt(int64(val), 10)
		return wireValue{IntegerValue: &s}, nil
	case int64:
		s := strconv.FormatInt(val, 10)
		return wireValue{IntegerValue: &s}, nil
	case float64:
		return wireValue{DoubleValue: &val}, nil
	case bool:
		return wireValue{BooleanValue: &val}, nil
	case time.Time:
		return wireValue{TimestampValue: &val}, nil
	case []any:
		values := make([]wireValue, 0, len(val))
		for _, item := range val {
			wv, err := encodeValue(item)
			if err != nil {
				return wireValue{}, err
			}
			values = append(values, wv)
		}
		return wireValue{ArrayValue: &wireArray{Values: values}}, nil
	case map[string]any:
		fields, err := encodeFields(val)
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{MapValue: &wireMap{Fields: fields}}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// encodeFields wraps every field of a document.
func encodeFields(fields map[string]any) (map[string]wireValue, error) {
	encoded := make(map[string]wireValue, len(fields))
	for name, v := range fields {
		wv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", name, err)
		}
		encoded[name] = wv
	}
	return encoded, nil
}

// decodeValue unwraps an envelope value into a plain Go value. Integers
// come back as int64, maps as map[string]any, arrays as []any.
func decodeValue(wv wireValue) (any, error) {
	switch {
	case wv.NullValue != nil:
		return nil, nil
	case wv.StringValue != nil:
		return *wv.StringValue, nil
	case wv.IntegerValue != nil:
		n, err := strconv.ParseInt(*wv.IntegerValue, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing integer value %q: %w", *wv.IntegerValue, err)
		}
		return n, nil
	case wv.DoubleValue != nil:
		return *wv.DoubleValue, nil
	case wv.BooleanValue != nil:
		return *wv.BooleanValue, nil
	case wv.TimestampValue != nil:
		return *wv.TimestampValue, nil
	case wv.ArrayValue != nil:
		values := make([]any, 0, len(wv.ArrayValue.Values))
		for _, item := range wv.ArrayValue.Values {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	case wv.MapValue != nil:
		return decodeFields(wv.MapValue.Fields)
	default:
		return nil, fmt.Errorf("value has no recognized type")
	}
}

// decodeFields unwraps every field of a document.
func decodeFields(fields map[string]wireValue) (map[string]any, error) {
	decoded := make(map[string]any, len(fields))
	for name, wv := range fields {
		v, err := decodeValue(wv)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", name, err)
		}
		decoded[name] = v
	}
	return decoded, nil
}
