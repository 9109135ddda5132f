package library

import "fmt"

// SheetType selects the template a reading sheet follows.
type SheetType string

const (
	SheetEssai         SheetType = "essai"
	SheetRomanHistoire SheetType = "roman_histoire"
	SheetLibre         SheetType = "libre"
)

type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldRating FieldKind = "rating"
)

// SheetField describes one prompt of a reading sheet template.
type SheetField struct {
	ID     string    `json:"id"`
	Label  string    `json:"label"`
	Helper string    `json:"helper,omitempty"`
	Kind   FieldKind `json:"kind"`
}

var sheetTemplates = map[SheetType][]SheetField{
	SheetEssai: {
		{ID: "pourquoi_lu", Label: "Pourquoi j’ai lu ce livre", Helper: "Contexte perso, pro, intellectuel.", Kind: FieldText},
		{ID: "probleme_traite", Label: "Problème traité", Helper: "La question centrale que l’auteur adresse.", Kind: FieldText},
		{ID: "these_auteur", Label: "Thèse / position de l’auteur", Helper: "Ce qu’il défend réellement.", Kind: FieldText},
		{ID: "idees_cles", Label: "Idées ou concepts clés", Helper: "3 à 5 max, nommés clairement.", Kind: FieldText},
		{ID: "resume_structure", Label: "Résumé structuré", Helper: "Comment l’argumentation se déroule.", Kind: FieldText},
		{ID: "ce_que_je_garde", Label: "Ce que je garde", Kind: FieldText},
		{ID: "ce_que_je_conteste", Label: "Ce que je conteste / nuance", Helper: "Limites, angles morts, désaccords.", Kind: FieldText},
		{ID: "questions_ouvertes", Label: "Questions ouvertes", Helper: "Ce que le livre laisse irrésolu.", Kind: FieldText},
		{ID: "note_globale", Label: "Note globale", Helper: "Sur 5.", Kind: FieldRating},
		{ID: "recommandation", Label: "Recommandation", Helper: "À qui, dans quel contexte.", Kind: FieldText},
	},
	SheetRomanHistoire: {
		{ID: "pourquoi_choisi", Label: "Pourquoi j’ai choisi ce livre", Helper: "Hasard, conseil, envie précise, moment de vie.", Kind: FieldText},
		{ID: "resume_sans_spoiler", Label: "Résumé sans spoiler", Kind: FieldText},
		{ID: "themes_principaux", Label: "Thèmes principaux", Kind: FieldText},
		{ID: "personnages_marquants", Label: "Personnages marquants", Kind: FieldText},
		{ID: "atmosphere_ton", Label: "Atmosphère / ton", Kind: FieldText},
		{ID: "ce_qui_ma_touche", Label: "Ce qui m’a touchée", Kind: FieldText},
		{ID: "ce_qui_ma_moins_convaincue", Label: "Ce qui m’a moins convaincue", Kind: FieldText},
		{ID: "images_ou_idees", Label: "Images ou idées qui restent", Kind: FieldText},
		{ID: "relire_pourquoi", Label: "Est-ce que je le relirais ?", Helper: "Pourquoi / quand.", Kind: FieldText},
	},
	SheetLibre: {
		{ID: "notes", Label: "Notes libres", Kind: FieldText},
	},
}

// ParseSheetType validates s against the known templates.
func ParseSheetType(s string) (SheetType, error) {
	t := SheetType(s)
	if _, ok := sheetTemplates[t]; !ok {
		return "", fmt.Errorf("unknown reading sheet type: %q", s)
	}
	return t, nil
}

// SheetTemplate returns a copy of the ordered fields of a sheet type.
func SheetTemplate(t SheetType) []SheetField {
	fields := sheetTemplates[t]
	out := make([]SheetField, len(fields))
	copy(out, fields)
	return out
}

// HasField reports whether fieldID belongs to the template of t.
func HasField(t SheetType, fieldID string) bool {
	for _, f := range sheetTemplates[t] {
		if f.ID == fieldID {
			return true
		}
	}
	return false
}
