// Package jsonutil wraps github.com/go-json-experiment/json with the options
// greenapi needs everywhere.
//
// Response bodies captured from targets are arbitrary bytes, so marshaling
// tolerates invalid UTF-8 instead of failing the whole result set. Decoding
// matches member names case-insensitively so clients that send
// "CurlCommand" or "curlcommand" still work.
//
// Usage:
//
//	data, err := jsonutil.Marshal(results)
//	err = jsonutil.UnmarshalRead(r.Body, &req)
package jsonutil

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

var (
	marshalOpts   = json.JoinOptions(jsontext.AllowInvalidUTF8(true))
	unmarshalOpts = json.JoinOptions(json.MatchCaseInsensitiveNames(true), jsontext.AllowInvalidUTF8(true))
)

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, marshalOpts)
}

// MarshalIndent returns the indented JSON encoding of v.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, marshalOpts, jsontext.WithIndent(indent))
}

// MarshalWrite writes the JSON encoding of v to w.
func MarshalWrite(w io.Writer, v any) error {
	return json.MarshalWrite(w, v, marshalOpts)
}

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v, unmarshalOpts)
}

// UnmarshalRead decodes a single JSON value from r into v.
func UnmarshalRead(r io.Reader, v any) error {
	return json.UnmarshalRead(r, v, unmarshalOpts)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// Indent re-encodes a single JSON value with the given indent, keeping
// member order and number literals as they appear in data.
func Indent(data []byte, indent string) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if !Valid(data) {
		return nil, errors.New("jsonutil: invalid JSON value")
	}
	var buf bytes.Buffer
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	enc := jsontext.NewEncoder(&buf, jsontext.WithIndent(indent))
	for {
		tok, err := dec.ReadToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := enc.WriteToken(tok); err != nil {
			return nil, err
		}
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Encoder writes newline-terminated JSON values to a stream.
type Encoder struct {
	w      io.Writer
	indent string
}

// NewEncoder creates an encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// SetIndent makes subsequent values indented with indent.
func (e *Encoder) SetIndent(indent string) {
	e.indent = indent
}

// Encode writes the JSON encoding of v followed by a newline.
func (e *Encoder) Encode(v any) error {
	var err error
	if e.indent != "" {
		err = json.MarshalWrite(e.w, v, marshalOpts, jsontext.WithIndent(e.indent))
	} else {
		err = json.MarshalWrite(e.w, v, marshalOpts)
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write([]byte{'\n'})
	return err
}
