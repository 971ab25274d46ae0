package fhir

// Identifier use codes.
const (
	IdentifierUseOfficial  = "official"
	IdentifierUseSecondary = "secondary"
)

type Identifier struct {
	Use    *string `json:"use,omitempty"`
	System *string `json:"system,omitempty"`
	Value  *string `json:"value,omitempty"`
}

type Reference struct {
	Reference *string `json:"reference,omitempty"`
	Display   *string `json:"display,omitempty"`
}

type Coding struct {
	System  *string `json:"system,omitempty"`
	Code    *string `json:"code,omitempty"`
	Display *string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   *string  `json:"text,omitempty"`
}

// CodeableReference is the R5 concept-or-reference datatype.
type CodeableReference struct {
	Concept   *CodeableConcept `json:"concept,omitempty"`
	Reference *Reference       `json:"reference,omitempty"`
}

type Extension struct {
	Url            string     `json:"url"`
	ValueCode      *string    `json:"valueCode,omitempty"`
	ValueString    *string    `json:"valueString,omitempty"`
	ValueBoolean   *bool      `json:"valueBoolean,omitempty"`
	ValueReference *Reference `json:"valueReference,omitempty"`
}

type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   *string  `json:"unit,omitempty"`
	System *string  `json:"system,omitempty"`
	Code   *string  `json:"code,omitempty"`
}

type Range struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
}

type Attachment struct {
	ContentType *string `json:"contentType,omitempty"`
	Url         *string `json:"url,omitempty"`
	Size        *int64  `json:"size,omitempty"`
	Hash        *string `json:"hash,omitempty"`
	Title       *string `json:"title,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

type Timing struct {
	Repeat *TimingRepeat `json:"repeat,omitempty"`
}

type TimingRepeat struct {
	BoundsRange *Range `json:"boundsRange,omitempty"`
	Count       *int64 `json:"count,omitempty"`
}
