// SPDX-License-Identifier: MPL-2.0

package hookenv

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// MarkerVar holds the encoded State of the last reconciliation.
const MarkerVar = "__RTVM_DIFF"

// maxStateSize bounds the decompressed marker.
const maxStateSize = 1 << 20

// ErrCorruptState is returned when the marker cannot be decoded.
var ErrCorruptState = errors.New("corrupt hook state")

type (
	// Var is one environment variable.
	Var struct {
		Name  string `json:"n"`
		Value string `json:"v"`
	}

	// State is everything a previous reconciliation did to the shell, so the
	// next one can undo it.
	State struct {
		// Path lists the directories prepended to PATH, in order.
		Path []string `json:"path,omitempty"`
		// Vars are the variables set, in patch order.
		Vars []Var `json:"vars,omitempty"`
		// Orig holds the shell's own values of variables in Vars that existed
		// before they were first overwritten.
		Orig []Var `json:"orig,omitempty"`
		// Tools lists the active plugin@version pairs, for status output.
		Tools []string `json:"tools,omitempty"`
	}
)

// IsEmpty reports whether the state records no effect on the shell.
func (s State) IsEmpty() bool {
	return len(s.Path) == 0 && len(s.Vars) == 0
}

// Encode serializes s into a marker value: JSON, zlib-compressed, then
// unpadded base64url. The alphabet is safe inside every supported shell's
// quoting.
func Encode(s State) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode hook state: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", fmt.Errorf("encode hook state: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("encode hook state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("encode hook state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses a marker value. Any failure wraps ErrCorruptState.
func Decode(marker string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(marker)
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxStateSize+1))
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if len(data) > maxStateSize {
		return State{}, fmt.Errorf("%w: state exceeds %d bytes", ErrCorruptState, maxStateSize)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	return s, nil
}
