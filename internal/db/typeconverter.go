package db

import (
	"encoding/json"
	"errors"
	"fmt"

	gorp "github.com/go-gorp/gorp/v3"

	"github.com/icao-pkd/pkd/internal/core"
)

// PKDTypeConverter is this module's equivalent of the teacher's
// BoulderTypeConverter (sa/type-converter.go): JSON-marshal the
// handful of slice/map fields gorp's row models carry (duplicate
// observations, lint findings, per-kind/per-country count maps,
// revoked-serial maps, PA reason lists), and round-trip the small
// enum types as plain strings.
type PKDTypeConverter struct{}

// ToDb converts a domain value to its DB representation.
func (PKDTypeConverter) ToDb(val interface{}) (interface{}, error) {
	switch t := val.(type) {
	case []core.DuplicateObservation, []core.LintFinding, []string,
		map[core.Kind]int, map[core.ValidationStatus]int,
		map[string]map[core.Kind]int, map[string]string:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case core.Kind, core.ValidationStatus, core.UploadFormat, core.ProcessingMode,
		core.UploadState, core.SyncStatus, core.ReconTrigger, core.ReconState, core.PAStatus:
		return fmt.Sprintf("%s", t), nil
	default:
		return val, nil
	}
}

// FromDb converts a DB representation back into a domain value.
func (PKDTypeConverter) FromDb(target interface{}) (gorp.CustomScanner, bool) {
	switch target.(type) {
	case *[]core.DuplicateObservation, *[]core.LintFinding, *[]string,
		*map[core.Kind]int, *map[core.ValidationStatus]int,
		*map[string]map[core.Kind]int, *map[string]string:
		binder := func(holder, target interface{}) error {
			s, ok := holder.(*string)
			if !ok {
				return errors.New("FromDb: unable to convert holder to *string")
			}
			return json.Unmarshal([]byte(*s), target)
		}
		return gorp.CustomScanner{Holder: new(string), Target: target, Binder: binder}, true
	case *core.Kind:
		return enumScanner(target, func(s string, t *core.Kind) { *t = core.Kind(s) })
	case *core.ValidationStatus:
		return enumScanner(target, func(s string, t *core.ValidationStatus) { *t = core.ValidationStatus(s) })
	case *core.UploadFormat:
		return enumScanner(target, func(s string, t *core.UploadFormat) { *t = core.UploadFormat(s) })
	case *core.ProcessingMode:
		return enumScanner(target, func(s string, t *core.ProcessingMode) { *t = core.ProcessingMode(s) })
	case *core.UploadState:
		return enumScanner(target, func(s string, t *core.UploadState) { *t = core.UploadState(s) })
	case *core.SyncStatus:
		return enumScanner(target, func(s string, t *core.SyncStatus) { *t = core.SyncStatus(s) })
	case *core.ReconTrigger:
		return enumScanner(target, func(s string, t *core.ReconTrigger) { *t = core.ReconTrigger(s) })
	case *core.ReconState:
		return enumScanner(target, func(s string, t *core.ReconState) { *t = core.ReconState(s) })
	case *core.PAStatus:
		return enumScanner(target, func(s string, t *core.PAStatus) { *t = core.PAStatus(s) })
	default:
		return gorp.CustomScanner{}, false
	}
}

// enumScanner builds the CustomScanner shared by every string-backed
// enum type above; assign is the type-specific "*string -> *T" step.
func enumScanner[T any](target interface{}, assign func(string, *T)) (gorp.CustomScanner, bool) {
	t, ok := target.(*T)
	if !ok {
		return gorp.CustomScanner{}, false
	}
	binder := func(holder, _ interface{}) error {
		s, ok := holder.(*string)
		if !ok {
			return fmt.Errorf("FromDb: unable to convert %T to *string", holder)
		}
		assign(*s, t)
		return nil
	}
	return gorp.CustomScanner{Holder: new(string), Target: target, Binder: binder}, true
}
