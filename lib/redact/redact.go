//
// See the file COPYRIGHT for copyright information.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package redact

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strings"
)

const (
	nestIndent  = "    "
	hiddenValue = "********"
)

// ToBytes prints the exported fields of a struct, one per line, with nested
// structs indented beneath their field name. Any field tagged `redact:"true"`
// has its value hidden.
func ToBytes(pointerToStruct any) ([]byte, error) {
	v := reflect.ValueOf(pointerToStruct)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a pointer to a struct, got %T", pointerToStruct)
	}
	output := &bytes.Buffer{}
	p := printer{w: output}
	if err := p.writeStruct(v.Elem(), ""); err != nil {
		return nil, fmt.Errorf("[writeStruct]: %w", err)
	}
	return output.Bytes(), nil
}

type printer struct {
	w io.Writer
}

func (p printer) line(indent, format string, args ...any) error {
	_, err := fmt.Fprintf(p.w, indent+format+"\n", args...)
	return err
}

func (p printer) writeStruct(v reflect.Value, indent string) error {
	t := v.Type()
	for i := range v.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		hidden := strings.EqualFold(field.Tag.Get("redact"), "true")
		if err := p.writeField(field.Name, v.Field(i), hidden, indent); err != nil {
			return err
		}
	}
	return nil
}

func (p printer) writeField(name string, f reflect.Value, hidden bool, indent string) error {
	switch f.Kind() {
	case reflect.Struct:
		if err := p.line(indent, "%v", name); err != nil {
			return err
		}
		if hidden {
			return p.line(indent+nestIndent, hiddenValue)
		}
		return p.writeStruct(f, indent+nestIndent)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.Struct {
			return p.scalar(name, f, hidden, indent)
		}
		for j := range f.Len() {
			if err := p.line(indent, "%v[%d]", name, j); err != nil {
				return err
			}
			var err error
			if hidden {
				err = p.line(indent+nestIndent, hiddenValue)
			} else {
				err = p.writeStruct(f.Index(j), indent+nestIndent)
			}
			if err != nil {
				return err
			}
		}
		return nil
	case reflect.Pointer:
		if f.IsNil() {
			return p.line(indent, "%v = <nil>", name)
		}
		return p.writeField(name, f.Elem(), hidden, indent)
	case reflect.String, reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return p.scalar(name, f, hidden, indent)
	default:
		return fmt.Errorf("unsupported field kind: %v", f.Kind().String())
	}
}

func (p printer) scalar(name string, f reflect.Value, hidden bool, indent string) error {
	if hidden {
		return p.line(indent, "%v = %v", name, hiddenValue)
	}
	return p.line(indent, "%v = %v", name, f.Interface())
}
