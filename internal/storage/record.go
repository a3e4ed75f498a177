// Package storage provides persistent storage for decoded soundings.
package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"sounding_parser/internal/profile"
	"sounding_parser/internal/sounding"
)

// Record is one stored sounding: the assembled profile plus the raw parts it
// was decoded from.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	Station    string            `json:"station"`
	Day        int               `json:"day"`  // sounding.Unknown when unreadable
	Hour       int               `json:"hour"` // sounding.Unknown when unreadable
	ReceivedAt time.Time         `json:"received_at"`
	Source     string            `json:"source,omitempty"`
	TTAA       string            `json:"ttaa,omitempty"`
	TTBB       string            `json:"ttbb,omitempty"`
	Complete   bool              `json:"complete"`
	Warnings   []string          `json:"warnings,omitempty"`
	Profile    *sounding.Profile `json:"profile"`
}

// NewRecord builds a record for a profile decoded from ttaa and ttbb.
func NewRecord(p *sounding.Profile, errs []error, ttaa, ttbb, source string, receivedAt time.Time) (Record, error) {
	if p == nil {
		return Record{}, errors.New("storage: nil profile")
	}

	r := Record{
		ID:         uuid.New(),
		Station:    p.Station,
		Day:        sounding.Unknown,
		Hour:       sounding.Unknown,
		ReceivedAt: receivedAt.UTC(),
		Source:     source,
		TTAA:       ttaa,
		TTBB:       ttbb,
		Complete:   ttbb != "",
		Profile:    p,
	}
	if p.Day != nil {
		r.Day = *p.Day
	}
	if p.Hour != nil {
		r.Hour = *p.Hour
	}
	for _, err := range errs {
		r.Warnings = append(r.Warnings, err.Error())
	}
	return r, nil
}

// FromCollated builds a record for a profile assembled by a profile.Collator.
func FromCollated(c *profile.Collated, source string, receivedAt time.Time) (Record, error) {
	if c == nil {
		return Record{}, errors.New("storage: nil collated profile")
	}
	r, err := NewRecord(c.Profile, c.Errors, c.TTAA, c.TTBB, source, receivedAt)
	if err != nil {
		return Record{}, err
	}
	r.Complete = c.Complete
	return r, nil
}

// ObservedAt returns the nominal observation time: the reported day and hour
// in the month the record was received. A day later than the receive date
// belongs to the previous month. Records without day or hour use ReceivedAt.
func (r Record) ObservedAt() time.Time {
	if r.Day < 1 || r.Day > 31 || r.Hour < 0 || r.Hour > 23 {
		return r.ReceivedAt
	}
	rec := r.ReceivedAt.UTC()
	t := time.Date(rec.Year(), rec.Month(), r.Day, r.Hour, 0, 0, 0, time.UTC)
	if t.After(rec.Add(24 * time.Hour)) {
		t = time.Date(rec.Year(), rec.Month()-1, r.Day, r.Hour, 0, 0, 0, time.UTC)
	}
	return t
}

// levelRow is one level flattened for the relational and columnar stores.
type levelRow struct {
	Kind  string // mandatory or significant
	Seq   int
	Level sounding.Level
}

const (
	kindMandatory   = "mandatory"
	kindSignificant = "significant"
)

func (r Record) levelRows() []levelRow {
	if r.Profile == nil {
		return nil
	}
	rows := make([]levelRow, 0, len(r.Profile.Mandatory)+len(r.Profile.Significant))
	for i, l := range r.Profile.Mandatory {
		rows = append(rows, levelRow{Kind: kindMandatory, Seq: i, Level: l})
	}
	for i, l := range r.Profile.Significant {
		rows = append(rows, levelRow{Kind: kindSignificant, Seq: i, Level: l})
	}
	return rows
}
