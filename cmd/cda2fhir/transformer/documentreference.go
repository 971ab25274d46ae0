package transformer

import (
	"sort"
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// Group tags. The tag is part of the Group identifier.
const (
	GroupTagSpecimen = "specimen"
	GroupTagPatient  = "patient"
)

var groupTypes = map[string]string{
	GroupTagSpecimen: "specimen",
	GroupTagPatient:  "person",
}

// Member is one resolved Group member.
type Member struct {
	BusinessID string
	Reference  fhir.Reference
}

// DocumentReference maps a file. subject is a Specimen, Patient or Group
// reference produced by the resolver.
func (t *Transformer) DocumentReference(f cda.File, subject fhir.Reference, studies []fhir.Reference) (fhir.DocumentReference, error) {
	fileID := f.ID
	if strings.TrimSpace(fileID) == "" {
		return fhir.DocumentReference{}, skip("file has no id")
	}
	if util.Deref(subject.Reference) == "" {
		return fhir.DocumentReference{}, skip("file %s has no subject", fileID)
	}

	official := identifier.Official(identifier.SystemFile, fileID)
	identifiers := []fhir.Identifier{official}
	if util.NonEmpty(f.DbgapAccessionNumber) {
		identifiers = append(identifiers, identifier.Secondary(identifier.SystemDbGap, strings.TrimSpace(*f.DbgapAccessionNumber)))
	}

	doc := fhir.DocumentReference{
		Id:         util.StringPtr(identifier.Mint("DocumentReference", official)),
		Extension:  PartOfStudy(studies),
		Identifier: identifiers,
		Status:     "current",
		Subject:    &subject,
		Content:    []fhir.DocumentReferenceContent{{Attachment: Attachment(f)}},
	}
	if util.NonEmpty(f.FileFormat) {
		doc.Type = textConcept("file_format", strings.TrimSpace(*f.FileFormat))
	}
	for _, c := range []struct {
		field string
		value *string
	}{
		{"data_category", f.DataCategory},
		{"data_type", f.DataType},
		{"data_modality", f.DataModality},
		{"imaging_modality", f.ImagingModality},
	} {
		if util.NonEmpty(c.value) {
			doc.Category = append(doc.Category, *textConcept(c.field, strings.TrimSpace(*c.value)))
		}
	}
	return doc, nil
}

// Attachment copies the file metadata as is, except for the trailing newline
// some checksums carry.
func Attachment(f cda.File) fhir.Attachment {
	a := fhir.Attachment{
		ContentType: f.FileFormat,
		Url:         f.DrsURI,
		Title:       f.Label,
		Size:        f.ByteSize,
	}
	if f.Checksum != nil {
		a.Hash = util.StringPtr(strings.TrimRight(*f.Checksum, "\r\n"))
	}
	return a
}

// Group builds the Group standing in for several members of a file. The same
// member set always mints the same id regardless of order.
func (t *Transformer) Group(fileID, tag string, members []Member, studies []fhir.Reference) (fhir.Group, error) {
	groupType, ok := groupTypes[tag]
	if !ok {
		return fhir.Group{}, skip("unknown group tag %q", tag)
	}
	if len(members) == 0 {
		return fhir.Group{}, skip("group for file %s has no members", fileID)
	}

	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BusinessID < sorted[j].BusinessID })

	ids := make([]string, 0, len(sorted))
	entries := make([]fhir.GroupMember, 0, len(sorted))
	for _, m := range sorted {
		ids = append(ids, m.BusinessID)
		entries = append(entries, fhir.GroupMember{Entity: m.Reference})
	}

	official := identifier.Official(identifier.SystemGroup, fileID+"/"+tag+"/"+strings.Join(ids, ","))
	return fhir.Group{
		Id:         util.StringPtr(identifier.Mint("Group", official)),
		Extension:  PartOfStudy(studies),
		Identifier: []fhir.Identifier{official},
		Type:       groupType,
		Membership: "enumerated",
		Member:     entries,
	}, nil
}
