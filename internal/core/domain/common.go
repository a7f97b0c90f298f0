package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator used for descriptive entities.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateStruct runs struct tag validation and reports failures as invariant violations.
func validateStruct(s any) error {
	if err := Validator().Struct(s); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}

// CanonicalJSON renders v with sorted object keys and no insignificant whitespace.
// encoding/json sorts map keys, so a round trip through map form yields a stable text.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}
	return out, nil
}

// Duration is a time.Duration that serializes as text ("720h0m0s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }
func (d Duration) String() string     { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("%w: invalid duration %q", apperrors.ErrSerialization, string(b))
	}
	*d = Duration(parsed)
	return nil
}

// Now is the clock used for created timestamps. Always UTC, truncated to microseconds so values
// survive every backend unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
