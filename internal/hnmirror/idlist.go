package hnmirror

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// IDList is an ordered sequence of entity ids. Order is display order from
// the source and round-trips through storage verbatim, encoded as a JSON
// array in a TEXT column.
type IDList []int64

// Value implements [driver.Valuer]. A nil list stores as SQL NULL so we can
// tell "never supplied" apart from an empty list.
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}

	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("error encoding id list: %s", err)
	}

	return string(b), nil
}

// Scan implements [sql.Scanner].
func (l *IDList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}

	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into IDList", src)
	}

	if err := json.Unmarshal(b, l); err != nil {
		return fmt.Errorf("error decoding id list: %s", err)
	}

	return nil
}
