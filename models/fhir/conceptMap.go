package fhir

// ConceptMap carries the subset of the resource used for vocabulary tables.
type ConceptMap struct {
	Id             *string           `json:"id,omitempty"`
	Url            *string           `json:"url,omitempty"`
	Name           *string           `json:"name,omitempty"`
	Status         string            `json:"status"`
	SourceScopeUri *string           `json:"sourceScopeUri,omitempty"`
	TargetScopeUri *string           `json:"targetScopeUri,omitempty"`
	Group          []ConceptMapGroup `json:"group,omitempty"`
}

type ConceptMapGroup struct {
	Source  *string                  `json:"source,omitempty"`
	Target  *string                  `json:"target,omitempty"`
	Element []ConceptMapGroupElement `json:"element,omitempty"`
}

type ConceptMapGroupElement struct {
	Code    *string                        `json:"code,omitempty"`
	Display *string                        `json:"display,omitempty"`
	Target  []ConceptMapGroupElementTarget `json:"target,omitempty"`
}

type ConceptMapGroupElementTarget struct {
	Code         *string `json:"code,omitempty"`
	Display      *string `json:"display,omitempty"`
	Relationship string  `json:"relationship"`
}
