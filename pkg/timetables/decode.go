package timetables

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DecodeError marks a payload that does not fit the document schema.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode timetable document: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func Decode(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var document Document
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, &DecodeError{Err: err}
	}

	if err := document.Validate(); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return &document, nil
}

func Encode(document *Document) ([]byte, error) {
	return json.Marshal(document)
}

func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}

	if d.Timetable == nil && len(d.Routes) == 0 {
		return errors.New("document has neither timetable nor routes")
	}

	for direction, route := range d.Routes {
		if route == nil {
			return fmt.Errorf("route %s is empty", direction)
		}

		if err := validate.Struct(route); err != nil {
			return fmt.Errorf("route %s: %w", direction, err)
		}
	}

	return nil
}
