package transformer

import (
	"reflect"
	"strings"
	"time"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// Columns of cda.Mutation that identify the row rather than describe it.
var mutationIdentityColumns = map[string]struct{}{
	"id":               {},
	"integer_id_alias": {},
}

var timeType = reflect.TypeOf(time.Time{})

// MutationObservation maps one variant call to an Observation with one
// component per populated column.
func (t *Transformer) MutationObservation(m cda.Mutation, subjectID string, studies []fhir.Reference) (fhir.Observation, error) {
	mutationID := m.ID
	if strings.TrimSpace(mutationID) == "" {
		return fhir.Observation{}, skip("mutation has no id")
	}
	if strings.TrimSpace(subjectID) == "" {
		return fhir.Observation{}, skip("mutation %s has no subject", mutationID)
	}

	official := identifier.Official(identifier.SystemMutation, mutationID)
	patient := PatientReference(subjectID)
	return fhir.Observation{
		Id:         util.StringPtr(identifier.Mint("Observation", official)),
		Extension:  PartOfStudy(studies),
		Identifier: []fhir.Identifier{official},
		Status:     "final",
		Category:   observationCategory("laboratory", "Laboratory"),
		Code:       *concept(SystemLOINC, "69548-6", "Genetic variant assessment"),
		Subject:    &patient,
		Focus:      []fhir.Reference{patient},
		Component:  MutationComponents(m),
	}, nil
}

// MutationComponents reflects over the db-tagged columns of m in declaration
// order. Nil and blank values are left out.
func MutationComponents(m cda.Mutation) []fhir.ObservationComponent {
	v := reflect.ValueOf(m)
	typ := v.Type()

	var components []fhir.ObservationComponent
	for i := 0; i < typ.NumField(); i++ {
		column := typ.Field(i).Tag.Get("db")
		if column == "" || column == "-" {
			continue
		}
		if _, ok := mutationIdentityColumns[column]; ok {
			continue
		}
		component, ok := typedComponent(v.Field(i))
		if !ok {
			continue
		}
		component.Code = *concept(identifier.BaseSystem, column, column)
		components = append(components, component)
	}
	return components
}

// typedComponent picks the value[x] element from the Go type of the column.
func typedComponent(field reflect.Value) (fhir.ObservationComponent, bool) {
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return fhir.ObservationComponent{}, false
		}
		field = field.Elem()
	}

	if field.Type() == timeType {
		ts := field.Interface().(time.Time)
		if ts.IsZero() {
			return fhir.ObservationComponent{}, false
		}
		dt := fhir.NewDateTime(ts)
		return fhir.ObservationComponent{ValueDateTime: &dt}, true
	}

	switch field.Kind() {
	case reflect.String:
		value := strings.TrimSpace(field.String())
		if value == "" {
			return fhir.ObservationComponent{}, false
		}
		return fhir.ObservationComponent{ValueString: util.StringPtr(value)}, true
	case reflect.Bool:
		return fhir.ObservationComponent{ValueBoolean: util.BoolPtr(field.Bool())}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fhir.ObservationComponent{ValueInteger: util.Int64Ptr(field.Int())}, true
	case reflect.Float32, reflect.Float64:
		return fhir.ObservationComponent{ValueQuantity: &fhir.Quantity{Value: util.Float64Ptr(field.Float())}}, true
	}
	return fhir.ObservationComponent{}, false
}
