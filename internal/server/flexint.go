package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// flexInt decodes a JSON number or a string holding an integer. The browser
// clients send a rating read from a data attribute, which is a string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not an integer", s)
		}
		*n = flexInt(v)
		return nil
	}

	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	v, err := f.Int64()
	if err != nil {
		return fmt.Errorf("%s is not an integer", f)
	}
	*n = flexInt(v)
	return nil
}
