package request

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Registration requests carry certificate files; parts beyond this stay on disk.
const maxMultipartMemory = 32 << 20

func parseForm(r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return fmt.Errorf("parse multipart form: %w", err)
	}
	return nil
}

// MultipartValue returns a string form field. A missing field is an error
// unless optional is set.
func MultipartValue(r *http.Request, name string, optional bool) (string, error) {
	if err := parseForm(r); err != nil {
		return "", err
	}
	values, found := r.MultipartForm.Value[name]
	if !found || len(values) == 0 || values[0] == "" {
		if optional {
			return "", nil
		}
		return "", fmt.Errorf("missing form value %s", name)
	}
	return values[0], nil
}

// MultipartNumericValue returns an integer form field. A missing optional
// field yields zero.
func MultipartNumericValue(r *http.Request, name string, optional bool) (int, error) {
	value, err := MultipartValue(r, name, optional)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("form value %s is not numeric", name)
	}
	return n, nil
}

// MultipartBoolValue returns a boolean form field; missing or unparseable
// optional fields yield false.
func MultipartBoolValue(r *http.Request, name string) bool {
	value, err := MultipartValue(r, name, true)
	if err != nil || value == "" {
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return b
}

// MultipartJSONValue decodes a JSON-encoded form field into v. Absence is
// fine when optional; a present but malformed value is always an error.
func MultipartJSONValue(r *http.Request, name string, optional bool, v any) error {
	value, err := MultipartValue(r, name, optional)
	if err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return fmt.Errorf("form value %s is not valid JSON: %w", name, err)
	}
	return nil
}

// MultipartFile returns the contents of an uploaded file part.
func MultipartFile(r *http.Request, name string) ([]byte, error) {
	if err := parseForm(r); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile(name)
	if err != nil {
		return nil, fmt.Errorf("missing form file %s", name)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", name, err)
	}
	return data, nil
}
