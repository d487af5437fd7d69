// Package validation checks request bodies and reports problems as field → rule codes.
package validation

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records rule for field unless the field already has one.
func (v Violations) Add(field, rule string) {
	if _, ok := v[field]; !ok {
		v[field] = rule
	}
}

// ErrBody is returned by Decode for malformed or unexpected JSON.
var ErrBody = errors.New("validation: malformed request body")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so violations match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct runs the validate tags of s.
func Struct(s any) Violations {
	out := Violations{}
	err := validate.Struct(s)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = "invalid"
		return out
	}
	for _, fe := range verrs {
		out.Add(fieldPath(fe.Namespace()), fe.Tag())
	}
	return out
}

// fieldPath drops the root struct name: "documentRequest.items[0].price" → "items[0].price".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Decode reads a single JSON object into dst, rejecting unknown fields and trailing data,
// then validates it.
func Decode(r io.Reader, dst any) (Violations, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return nil, errors.Join(ErrBody, err)
	}
	if dec.More() {
		return nil, errors.Join(ErrBody, errors.New("trailing data after JSON object"))
	}
	return Struct(dst), nil
}
