package models

import "fmt"

// Agency constants. The shared description lives under the common
// agencies; everything else is an institution's own space.
const (
	CommonAgency        = 870970
	ArticleAgency       = 870971
	AuthorityAgency     = 870979
	LittolkAgency       = 870974
	DBCEnrichmentAgency = 191919
	SchoolCommonAgency  = 300000
	MinSchoolAgency     = 300001
	MaxSchoolAgency     = 399999
)

// RecordID identifies a record in the graph. Identity is immutable
// once created.
type RecordID struct {
	BibliographicRecordID string `json:"bibliographicRecordId"`
	AgencyID              int    `json:"agencyId"`
}

func NewRecordID(bibliographicRecordID string, agencyID int) RecordID {
	return RecordID{BibliographicRecordID: bibliographicRecordID, AgencyID: agencyID}
}

func (id RecordID) String() string {
	return fmt.Sprintf("%s:%d", id.BibliographicRecordID, id.AgencyID)
}

// IsCommonAgency reports whether the agency holds shared records.
func IsCommonAgency(agencyID int) bool {
	switch agencyID {
	case CommonAgency, ArticleAgency, AuthorityAgency, LittolkAgency, SchoolCommonAgency:
		return true
	}
	return false
}

// IsSchoolAgency reports whether the agency is a school library. School
// libraries share records under SchoolCommonAgency.
func IsSchoolAgency(agencyID int) bool {
	return agencyID >= MinSchoolAgency && agencyID <= MaxSchoolAgency
}

// CentralizedOwners are the 996a values that mark a record as centrally
// catalogued. A change of owner from outside this set into it is an
// ownership promotion.
var CentralizedOwners = map[string]bool{
	"DBC": true,
	"RET": true,
}

func IsCentralizedOwner(owner string) bool {
	return CentralizedOwners[owner]
}
