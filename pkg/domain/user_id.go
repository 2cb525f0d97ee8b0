package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	dErrors "shardauth/pkg/domain-errors"
)

// UserID is the raw identity a caller presents: the decimal index of the
// ledger block issued at registration. Clients send it either as a JSON
// number or as a string; both decode to the canonical decimal form so that
// `2`, `"2"` and `" 02 "` hash to the same identity.
type UserID string

// UnmarshalJSON accepts a non-negative integer as a number or a string, and
// `null`. An empty string decodes to the zero value.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*u = ""
			return nil
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "userId must be a string or a number")
		}
		raw = n.String()
	}
	id, err := ParseUserID(raw)
	if err != nil {
		return err
	}
	*u = id
	return nil
}

// ParseUserID canonicalizes a decimal block index.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "userId must be a non-negative integer")
	}
	return UserIDFromIndex(n), nil
}

func (u UserID) String() string {
	return string(u)
}

// IsZero reports whether no identity was supplied.
func (u UserID) IsZero() bool {
	return u == ""
}

// UserIDFromIndex formats a block index as the identity string that callers
// present and that identity hashing is computed over.
func UserIDFromIndex(index uint64) UserID {
	return UserID(strconv.FormatUint(index, 10))
}
