// Package decode adapts external activity-file parsers to a uniform raw
// structure of attribute bags.
package decode

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

// Attributes is one decoded message: field name to native value.
type Attributes map[string]any

// RawActivity is the decoder output. A nil Records slice means the input
// carried no records sequence at all.
type RawActivity struct {
	Format   string
	Records  []Attributes
	Laps     []Attributes
	Sessions []Attributes
}

// Decoder turns file bytes into a RawActivity.
type Decoder interface {
	Format() string
	Decode(data []byte) (RawActivity, error)
}

var (
	ErrEmpty         = errors.New("file is empty")
	ErrUnknownFormat = errors.New("unrecognized activity file format")
)

// Error reports that the bytes are not a well-formed activity file.
type Error struct {
	Format string
	Err    error
}

func (e *Error) Error() string {
	return "decode " + e.Format + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry picks a decoder by file extension, then by content.
type Registry struct {
	byFormat map[string]Decoder
}

func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{byFormat: map[string]Decoder{}}
	for _, d := range decoders {
		r.byFormat[d.Format()] = d
	}
	return r
}

// DefaultRegistry knows FIT, GPX and the JSON export format.
func DefaultRegistry() *Registry {
	return NewRegistry(FITDecoder{}, GPXDecoder{}, JSONDecoder{})
}

func (r *Registry) Decode(name string, data []byte) (RawActivity, error) {
	if len(data) == 0 {
		return RawActivity{}, &Error{Format: extension(name), Err: ErrEmpty}
	}

	dec := r.lookup(name, data)
	if dec == nil {
		return RawActivity{}, &Error{Format: extension(name), Err: ErrUnknownFormat}
	}

	raw, err := dec.Decode(data)
	if err != nil {
		var decodeErr *Error
		if !errors.As(err, &decodeErr) {
			err = &Error{Format: dec.Format(), Err: err}
		}
		return RawActivity{}, err
	}
	raw.Format = dec.Format()
	return raw, nil
}

func (r *Registry) lookup(name string, data []byte) Decoder {
	if dec, ok := r.byFormat[extension(name)]; ok {
		return dec
	}
	return r.byFormat[sniff(data)]
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func sniff(data []byte) string {
	// FIT header: size byte, protocol, profile (2), data size (4), ".FIT".
	if len(data) >= 12 && string(data[8:12]) == ".FIT" {
		return "fit"
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	switch {
	case bytes.HasPrefix(trimmed, []byte("<")):
		return "gpx"
	case bytes.HasPrefix(trimmed, []byte("{")):
		return "json"
	}
	return ""
}
