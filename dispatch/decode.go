package dispatch

import "github.com/mitchellh/mapstructure"

// DecodeValue maps a goja-exported JS value (already a Go
// map[string]interface{}/[]interface{} tree from Value.Export()) onto a Go
// struct, matching fields by "json" tag and coercing JS's float64 numbers
// into whatever numeric type the destination field declares.
func DecodeValue(value interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(value)
}
