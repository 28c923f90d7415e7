package bulletin

import (
	"visabulletin/lib/textutil"
)

// Field keys produced by NormalizeHeader.
const (
	FieldUnrecognized = ""

	FieldVisaCategory         = "visa_category"
	FieldPreferenceLevel      = "preference_level"
	FieldFamilySponsored      = "family_sponsored"
	FieldFamilyPreference     = "family_preference"
	FieldEmploymentBased      = "employment_based"
	FieldEmploymentPreference = "employment_preference"
	FieldRegion               = "region"
	FieldCategory             = "category"

	FieldFinalActionDate = "final_action_date"
	FieldFilingDate      = "filing_date"
	FieldCutoffDate      = "cutoff_date"
	FieldActionDate      = "action_date"
	FieldProcessingDate  = "processing_date"
	FieldCurrent         = "current"

	FieldAllChargeability = "all_chargeability"
	FieldChina            = "china"
	FieldIndia            = "india"
	FieldMexico           = "mexico"
	FieldPhilippines      = "philippines"
	FieldElSalvador       = "el_salvador"
	FieldVietnam          = "vietnam"
)

type headerPattern struct {
	phrase string
	key    string
}

// headerPatterns is evaluated in order and the first phrase contained in the
// header wins, so a longer phrase must always come before any shorter phrase
// it contains ("final action date" before "action date", "visa category"
// before "category").
var headerPatterns = []headerPattern{
	{phrase: "visa category", key: FieldVisaCategory},
	{phrase: "preference level", key: FieldPreferenceLevel},
	{phrase: "family sponsored", key: FieldFamilySponsored},
	{phrase: "family preference", key: FieldFamilyPreference},
	{phrase: "employment based", key: FieldEmploymentBased},
	{phrase: "employment preference", key: FieldEmploymentPreference},

	{phrase: "final action date", key: FieldFinalActionDate},
	{phrase: "final action dates", key: FieldFinalActionDate},
	{phrase: "dates for filing", key: FieldFilingDate},
	{phrase: "date for filing", key: FieldFilingDate},
	{phrase: "date s for filing", key: FieldFilingDate},
	{phrase: "filing date", key: FieldFilingDate},
	{phrase: "cutoff date", key: FieldCutoffDate},
	{phrase: "cut off date", key: FieldCutoffDate},
	{phrase: "action date", key: FieldActionDate},
	{phrase: "processing date", key: FieldProcessingDate},

	{phrase: "all chargeability", key: FieldAllChargeability},
	{phrase: "chargeability", key: FieldAllChargeability},
	{phrase: "china", key: FieldChina},
	{phrase: "india", key: FieldIndia},
	{phrase: "mexico", key: FieldMexico},
	{phrase: "philippines", key: FieldPhilippines},
	{phrase: "el salvador", key: FieldElSalvador},
	{phrase: "vietnam", key: FieldVietnam},

	{phrase: "region", key: FieldRegion},
	{phrase: "category", key: FieldCategory},
	{phrase: "current", key: FieldCurrent},
}

// labelFields are the keys of columns that hold a category label rather than
// a cutoff value.
var labelFields = map[string]bool{
	FieldVisaCategory:         true,
	FieldPreferenceLevel:      true,
	FieldFamilySponsored:      true,
	FieldFamilyPreference:     true,
	FieldEmploymentBased:      true,
	FieldEmploymentPreference: true,
	FieldRegion:               true,
	FieldCategory:             true,
}

// NormalizeHeader maps a raw header string to a canonical field key, or
// FieldUnrecognized when no pattern matches. Casing, punctuation and
// whitespace are ignored.
func NormalizeHeader(header string) string {
	normalized := textutil.Normalize(header)
	if normalized == "" {
		return FieldUnrecognized
	}
	for _, p := range headerPatterns {
		if textutil.ContainsPhrase(normalized, p.phrase) {
			return p.key
		}
	}
	return FieldUnrecognized
}

// IsLabelField reports whether the key names a category label column.
func IsLabelField(key string) bool {
	return labelFields[key]
}

// columnKey returns the key used for a column, unrecognized headers fall back
// to a slug of the header text so their values are not lost.
func columnKey(header string) (key string, recognized bool) {
	key = NormalizeHeader(header)
	if key != FieldUnrecognized {
		return key, true
	}
	return textutil.Slug(header), false
}
