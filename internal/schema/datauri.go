package schema

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

const (
	dataURIScheme = "data:"
	base64Marker  = ";base64,"
)

var mimeTypePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9!#$&^_.+-]*/[A-Za-z0-9][A-Za-z0-9!#$&^_.+-]*$`)

// ErrMalformedDataURI is returned for attachment strings not of the form
// data:<mime-type>;base64,<payload>.
var ErrMalformedDataURI = errors.New("must be a data URI of the form data:<mime-type>;base64,<payload>")

// DataURI is a decoded attachment.
type DataURI struct {
	MIMEType string
	Data     []byte
}

// ParseDataURI decodes s, which must be exactly data:<mime-type>;base64,<payload>.
func ParseDataURI(s string) (*DataURI, error) {
	if !strings.HasPrefix(s, dataURIScheme) {
		return nil, ErrMalformedDataURI
	}
	rest := s[len(dataURIScheme):]
	idx := strings.Index(rest, base64Marker)
	if idx <= 0 {
		return nil, ErrMalformedDataURI
	}
	mimeType := rest[:idx]
	if !mimeTypePattern.MatchString(mimeType) {
		return nil, ErrMalformedDataURI
	}
	payload := rest[idx+len(base64Marker):]
	if payload == "" {
		return nil, errors.New("data URI has an empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, errors.New("data URI payload is not valid base64")
		}
	}
	return &DataURI{MIMEType: strings.ToLower(mimeType), Data: data}, nil
}

// String encodes u back into data-URI form.
func (u *DataURI) String() string {
	return dataURIScheme + u.MIMEType + base64Marker + base64.StdEncoding.EncodeToString(u.Data)
}

// MatchMIMEType reports whether mimeType matches any of patterns. A pattern may end in
// "/*" to accept a whole top-level type.
func MatchMIMEType(patterns []string, mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "*/*" || p == mimeType {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, "/*"); ok && strings.HasPrefix(mimeType, prefix+"/") {
			return true
		}
	}
	return false
}
