package model

import "math"

// Known attribute keys. Values for these keys are coerced to their declared
// kind before fusion; other keys pass through as reported.
const (
	AttrBedrooms     = "bedrooms"
	AttrBathrooms    = "bathrooms"
	AttrSqft         = "sqft"
	AttrLotSqft      = "lot_sqft"
	AttrYearBuilt    = "year_built"
	AttrStories      = "stories"
	AttrUnits        = "units"
	AttrPropertyType = "property_type"
	AttrStatus       = "status"
)

// attributeKinds declares the kind of each known attribute. Distress flags
// are booleans.
var attributeKinds = map[string]ScalarKind{
	AttrBedrooms:     KindNumber,
	AttrBathrooms:    KindNumber,
	AttrSqft:         KindNumber,
	AttrLotSqft:      KindNumber,
	AttrYearBuilt:    KindNumber,
	AttrStories:      KindNumber,
	AttrUnits:        KindNumber,
	AttrPropertyType: KindString,
	AttrStatus:       KindString,

	"is_fsbo":         KindBool,
	"code_violation":  KindBool,
	"tax_delinquent":  KindBool,
	"probate":         KindBool,
	"eviction":        KindBool,
	"pre_foreclosure": KindBool,
	"foreclosure":     KindBool,
	"auction":         KindBool,
	"bank_owned":      KindBool,
	"reo":             KindBool,
	"short_sale":      KindBool,
	"vacant":          KindBool,
	"cash_only":       KindBool,
}

// AttributeKind returns the declared kind of a known attribute.
func AttributeKind(key string) (ScalarKind, bool) {
	k, ok := attributeKinds[key]
	return k, ok
}

// CoerceAttribute validates v for key. Known keys are converted to their
// declared kind; unknown keys pass through. It reports false for absent
// values, non-finite numbers and values that cannot be converted.
func CoerceAttribute(key string, v Scalar) (Scalar, bool) {
	if v.IsZero() {
		return Scalar{}, false
	}
	out := v
	if kind, known := attributeKinds[key]; known {
		var ok bool
		switch kind {
		case KindNumber:
			out, ok = v.AsNumber()
		case KindBool:
			out, ok = v.AsBool()
		case KindString:
			ok = v.Kind() == KindString
		}
		if !ok {
			return Scalar{}, false
		}
	}
	if n, isNum := out.Num(); isNum && (math.IsNaN(n) || math.IsInf(n, 0)) {
		return Scalar{}, false
	}
	return out, true
}
