package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/padstorm/internal/input/sample"
)

// FormatVersion is the trace format written by Marshal.
const FormatVersion = 1

var (
	// ErrInvalidTrace is returned when trace data is not a valid trace document.
	ErrInvalidTrace = errors.New("invalid trace")

	// ErrUnsupportedVersion is returned for traces written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported trace version")
)

// Trace is a recorded sequence of raw samples.
type Trace struct {
	ID      uuid.UUID
	Created time.Time
	Samples []sample.Raw
}

// NewTrace creates an empty trace with a fresh ID.
func NewTrace() *Trace {
	return &Trace{ID: uuid.New(), Created: time.Now().UTC()}
}

// Len returns the number of samples.
func (t *Trace) Len() int { return len(t.Samples) }

// Duration returns the time between the first and last sample.
func (t *Trace) Duration() time.Duration {
	if len(t.Samples) < 2 {
		return 0
	}
	return t.Samples[len(t.Samples)-1].Time.Sub(t.Samples[0].Time)
}

// Marshal encodes the trace as JSON.
func (t *Trace) Marshal() ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	if doc, err = sjson.SetBytes(doc, "version", FormatVersion); err != nil {
		return nil, err
	}
	if doc, err = sjson.SetBytes(doc, "id", t.ID.String()); err != nil {
		return nil, err
	}
	if doc, err = sjson.SetBytes(doc, "created", t.Created.Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	samples, err := marshalSamples(t.Samples)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(doc, "samples", samples)
}

// marshalSamples encodes samples as one JSON array.
func marshalSamples(samples []sample.Raw) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, raw := range samples {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Unmarshal decodes a trace written by Marshal.
func Unmarshal(data []byte) (*Trace, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidTrace)
	}

	version := gjson.GetBytes(data, "version")
	if !version.Exists() {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidTrace)
	}
	if v := version.Int(); v < 1 || v > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	t := &Trace{}
	if id := gjson.GetBytes(data, "id"); id.Exists() {
		parsed, err := uuid.Parse(id.String())
		if err != nil {
			return nil, fmt.Errorf("%w: id: %v", ErrInvalidTrace, err)
		}
		t.ID = parsed
	}
	if created := gjson.GetBytes(data, "created"); created.Exists() {
		ts, err := time.Parse(time.RFC3339Nano, created.String())
		if err != nil {
			return nil, fmt.Errorf("%w: created: %v", ErrInvalidTrace, err)
		}
		t.Created = ts
	}

	samples := gjson.GetBytes(data, "samples")
	if !samples.IsArray() {
		return nil, fmt.Errorf("%w: samples is not an array", ErrInvalidTrace)
	}

	var decodeErr error
	samples.ForEach(func(key, value gjson.Result) bool {
		var raw sample.Raw
		if err := json.Unmarshal([]byte(value.Raw), &raw); err != nil {
			decodeErr = fmt.Errorf("%w: sample %d: %v", ErrInvalidTrace, key.Int(), err)
			return false
		}
		t.Samples = append(t.Samples, raw)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return t, nil
}

// Save writes the trace to w.
func (t *Trace) Save(w io.Writer) error {
	b, err := t.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Load reads a trace from r.
func Load(r io.Reader) (*Trace, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

// SaveFile writes the trace to path.
func (t *Trace) SaveFile(path string) error {
	b, err := t.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadFile reads a trace from path.
func LoadFile(path string) (*Trace, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
