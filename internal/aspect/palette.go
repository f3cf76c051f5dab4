package aspect

// PaletteKind classifies how many aspects tint a card frame.
type PaletteKind string

const (
	PaletteFundamental PaletteKind = "fundamental"
	PaletteMono        PaletteKind = "mono"
	PaletteDual        PaletteKind = "dual"
	PaletteTri         PaletteKind = "tri"
	PalettePoly        PaletteKind = "poly"
)

// Palette is the set of aspects that drive a card's colouring.
type Palette struct {
	Kind    PaletteKind
	Aspects []Aspect
}

// PaletteOf picks the tinting aspects. A positive mask wins; otherwise the
// elemental aspects with positive counts are used in canonical order.
func PaletteOf(mask Mask, counts Counts) Palette {
	var aspects []Aspect
	if mask > 0 {
		aspects = mask.Aspects()
	} else {
		for _, e := range counts.entries {
			if e.Count > 0 && !e.Aspect.IsNeutral() && Known(e.Aspect) {
				aspects = append(aspects, e.Aspect)
			}
		}
	}

	p := Palette{Aspects: aspects}
	switch len(aspects) {
	case 0:
		p.Kind = PaletteFundamental
	case 1:
		p.Kind = PaletteMono
	case 2:
		p.Kind = PaletteDual
	case 3:
		p.Kind = PaletteTri
	default:
		p.Kind = PalettePoly
	}
	return p
}
