package clinic

import (
	"regexp"
	"strings"
)

// Treatment names used by the duration rule.
const (
	TreatmentFilling           = "Filling"
	TreatmentBracesMaintenance = "Braces Maintenance"
)

const (
	fillingFirstToothMinutes = 30
	fillingExtraToothMinutes = 15
	fillingUnknownMinutes    = 15
)

// Practitioner is a dentist whose calendar can be booked.
type Practitioner struct {
	ID         string   `mapstructure:"id" json:"id"`
	Name       string   `mapstructure:"name" json:"name"`
	Aliases    []string `mapstructure:"aliases" json:"aliases,omitempty"`
	CalendarID string   `mapstructure:"calendar_id" json:"calendar_id,omitempty"`
}

// Treatment is a bookable procedure.
type Treatment struct {
	Name     string   `mapstructure:"name" json:"name"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
	Minutes  int      `mapstructure:"minutes" json:"minutes"`
	// PractitionerMinutes overrides Minutes per practitioner ID.
	PractitionerMinutes map[string]int `mapstructure:"practitioner_minutes" json:"practitioner_minutes,omitempty"`
}

// Catalog is the clinic's static configuration of people and procedures.
type Catalog struct {
	Practitioners []Practitioner `mapstructure:"practitioners" json:"practitioners"`
	Treatments    []Treatment    `mapstructure:"treatments" json:"treatments"`
}

// Default returns the catalog used when none is configured.
func Default() Catalog {
	return Catalog{
		Practitioners: []Practitioner{
			{ID: "dr-smith", Name: "Dr. Smith", Aliases: []string{"smith"}},
			{ID: "dr-patel", Name: "Dr. Patel", Aliases: []string{"patel"}},
			{ID: "dr-garcia", Name: "Dr. Garcia", Aliases: []string{"garcia"}},
		},
		Treatments: []Treatment{
			{Name: "Cleaning", Keywords: []string{"cleaning", "clean", "hygiene", "scale and polish"}, Minutes: 30},
			{Name: "Check-up", Keywords: []string{"check-up", "checkup", "check up", "exam", "examination"}, Minutes: 30},
			{Name: TreatmentFilling, Keywords: []string{"filling", "fillings", "cavity", "cavities"}},
			{Name: TreatmentBracesMaintenance, Keywords: []string{"braces", "brace", "orthodontic", "tighten"},
				Minutes: 15, PractitionerMinutes: map[string]int{"dr-garcia": 30}},
			{Name: "Root Canal", Keywords: []string{"root canal"}, Minutes: 90},
			{Name: "Extraction", Keywords: []string{"extraction", "pull", "remove a tooth", "wisdom"}, Minutes: 45},
			{Name: "Whitening", Keywords: []string{"whitening", "whiten", "bleach"}, Minutes: 60},
			{Name: "Consultation", Keywords: []string{"consultation", "consult"}, Minutes: 30},
		},
	}
}

// Practitioner looks up by ID.
func (c Catalog) Practitioner(id string) (Practitioner, bool) {
	for _, p := range c.Practitioners {
		if p.ID == id {
			return p, true
		}
	}
	return Practitioner{}, false
}

// Treatment looks up by exact name.
func (c Catalog) Treatment(name string) (Treatment, bool) {
	for _, t := range c.Treatments {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Treatment{}, false
}

// FindTreatment returns the first treatment whose keyword occurs in text.
func (c Catalog) FindTreatment(text string) (Treatment, bool) {
	lower := strings.ToLower(text)
	for _, t := range c.Treatments {
		for _, kw := range append([]string{t.Name}, t.Keywords...) {
			if containsWord(lower, strings.ToLower(kw)) {
				return t, true
			}
		}
	}
	return Treatment{}, false
}

// FindPractitioner matches a practitioner by name or alias inside text.
func (c Catalog) FindPractitioner(text string) (Practitioner, bool) {
	lower := strings.ToLower(text)
	for _, p := range c.Practitioners {
		names := append([]string{p.Name, strings.TrimPrefix(p.Name, "Dr. ")}, p.Aliases...)
		for _, n := range names {
			if n != "" && containsWord(lower, strings.ToLower(n)) {
				return p, true
			}
		}
	}
	return Practitioner{}, false
}

// DurationMinutes is the appointment length for a treatment. Practitioner only
// matters for overrides such as braces maintenance; tooth count only for fillings.
func (c Catalog) DurationMinutes(treatment, practitionerID string, teeth int) int {
	if strings.EqualFold(treatment, TreatmentFilling) {
		if teeth <= 0 {
			return fillingUnknownMinutes
		}
		return fillingFirstToothMinutes + fillingExtraToothMinutes*(teeth-1)
	}
	t, ok := c.Treatment(treatment)
	if !ok {
		return fillingUnknownMinutes
	}
	if m, ok := t.PractitionerMinutes[practitionerID]; ok && m > 0 {
		return m
	}
	if t.Minutes <= 0 {
		return fillingUnknownMinutes
	}
	return t.Minutes
}

// PractitionerNames lists display names for prompts.
func (c Catalog) PractitionerNames() []string {
	out := make([]string, 0, len(c.Practitioners))
	for _, p := range c.Practitioners {
		out = append(out, p.Name)
	}
	return out
}

func (c Catalog) TreatmentNames() []string {
	out := make([]string, 0, len(c.Treatments))
	for _, t := range c.Treatments {
		out = append(out, t.Name)
	}
	return out
}

// BookingTerms lists every treatment name and keyword.
func (c Catalog) BookingTerms() []string {
	var out []string
	for _, t := range c.Treatments {
		out = append(out, t.Name)
		out = append(out, t.Keywords...)
	}
	return out
}

func containsWord(text, word string) bool {
	re, err := regexp.Compile(`(^|[^a-z])` + regexp.QuoteMeta(word) + `($|[^a-z])`)
	if err != nil {
		return strings.Contains(text, word)
	}
	return re.MatchString(text)
}
