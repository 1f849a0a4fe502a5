// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` once the merged Koanf
// tree is unmarshalled and defaulted.  Any validation error aborts
// startup, ensuring the binary never runs with partial, malformed, or
// missing configuration.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.
//   • Errors name the koanf key, not the Go field, so operators can find
//     the line to fix.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = func() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}()

//
// public API
//

// validateStruct returns nil on success, or one error listing every
// failing key as "section.key (rule)".
func validateStruct(c *Config) error {
	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make([]string, len(ve))
	for i, fe := range ve {
		// Namespace is "Config.http.listen_addr"; drop the root.
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields[i] = fmt.Sprintf("%s (%s)", ns, fe.Tag())
	}
	return fmt.Errorf("config invalid: %s", strings.Join(fields, ", "))
}
