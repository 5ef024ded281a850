package inference

import "github.com/okian/wearsense/internal/domain/model"

// Labels emitted by the garment detector.
const (
	ShortSleeveTop     = "short sleeve top"
	LongSleeveTop      = "long sleeve top"
	ShortSleeveOutwear = "short sleeve outwear"
	LongSleeveOutwear  = "long sleeve outwear"
	Vest               = "vest"
	Sling              = "sling"
	Shorts             = "shorts"
	Trousers           = "trousers"
	Skirt              = "skirt"
	ShortSleeveDress   = "short sleeve dress"
	LongSleeveDress    = "long sleeve dress"
	VestDress          = "vest dress"
	SlingDress         = "sling dress"
)

// Catalogue lists every detector label in class-id order.
var Catalogue = []string{
	ShortSleeveTop, LongSleeveTop, ShortSleeveOutwear, LongSleeveOutwear,
	Vest, Sling, Shorts, Trousers, Skirt,
	ShortSleeveDress, LongSleeveDress, VestDress, SlingDress,
}

var lowerGarments = map[string]struct{}{
	Shorts:   {},
	Skirt:    {},
	Trousers: {},
}

var upperMapping = map[string]string{
	LongSleeveDress:  LongSleeveTop,
	ShortSleeveDress: ShortSleeveTop,
	Sling:            LongSleeveTop,
	SlingDress:       ShortSleeveTop,
	Vest:             ShortSleeveTop,
	VestDress:        ShortSleeveTop,
}

var lowerMapping = map[string]string{
	LongSleeveDress:  Skirt,
	ShortSleeveDress: Skirt,
	Sling:            Skirt,
	SlingDress:       Skirt,
	Vest:             Skirt,
	VestDress:        Skirt,
}

// SplitLabel turns one raw detector label into a one-sided pair: shorts,
// skirt and trousers are lower garments, everything else is upper.
func SplitLabel(raw string) model.GarmentPair {
	if _, ok := lowerGarments[raw]; ok {
		return model.GarmentPair{Lower: &raw}
	}
	return model.GarmentPair{Upper: &raw}
}

// SplitLabels applies SplitLabel to every raw label, keeping order.
func SplitLabels(raw []string) []model.GarmentPair {
	pairs := make([]model.GarmentPair, 0, len(raw))
	for _, l := range raw {
		pairs = append(pairs, SplitLabel(l))
	}
	return pairs
}

// MapUpper maps an upper label onto the classifier's feature vocabulary.
func MapUpper(label string) string {
	if m, ok := upperMapping[label]; ok {
		return m
	}
	return label
}

// MapLower maps a lower label onto the classifier's feature vocabulary.
func MapLower(label string) string {
	if m, ok := lowerMapping[label]; ok {
		return m
	}
	return label
}
