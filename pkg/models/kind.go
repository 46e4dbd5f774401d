package models

// Kind is the derived classification of a record. It is never stored;
// it is recomputed from agency, type and linkage every time.
type Kind int

const (
	KindLocal Kind = iota
	KindCommon
	KindVolume
	KindEnrichment
)

func (k Kind) String() string {
	switch k {
	case KindCommon:
		return "common"
	case KindVolume:
		return "volume"
	case KindEnrichment:
		return "enrichment"
	default:
		return "local"
	}
}

// volume type codes in 004a: b = volume, s = section
func isVolumeTypeCode(typeCode string) bool {
	return typeCode == "b" || typeCode == "s"
}

// Classify derives the record kind. hasParent is the presence of a
// parent link in the record content; commonExists tells whether the
// shared description with the same bibliographic id exists, which is
// what separates an enrichment from a plain local record.
func Classify(agencyID int, typeCode string, hasParent, commonExists bool) Kind {
	if IsCommonAgency(agencyID) {
		if hasParent || isVolumeTypeCode(typeCode) {
			return KindVolume
		}
		return KindCommon
	}

	if agencyID == DBCEnrichmentAgency {
		return KindEnrichment
	}

	if commonExists {
		return KindEnrichment
	}

	return KindLocal
}
