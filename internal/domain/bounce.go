package domain

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Domain contains core models.

// displayLayout renders a medium date and a short time, e.g. "Sep 9, 2025 at 4:00 PM".
const displayLayout = "Jan 2, 2006 at 3:04 PM"

// Bounce is a single planned hangout. Values are immutable once built.
type Bounce struct {
	id     uuid.UUID
	title  string
	date   time.Time
	friend *string
}

// New builds a Bounce with a fresh identifier. No validation happens here.
func New(title string, date time.Time, friend *string) Bounce {
	b := Bounce{
		id:    uuid.New(),
		title: title,
		date:  date,
	}
	if friend != nil {
		f := *friend
		b.friend = &f
	}
	return b
}

func (b Bounce) ID() uuid.UUID   { return b.id }
func (b Bounce) Title() string   { return b.title }
func (b Bounce) Date() time.Time { return b.date }

// Friend returns the invited friend and whether one was supplied at all.
func (b Bounce) Friend() (string, bool) {
	if b.friend == nil {
		return "", false
	}
	return *b.friend, true
}

// ErrUnencodable marks a Bounce that cannot be represented on the wire without loss.
var ErrUnencodable = errors.New("bounce cannot be encoded")

// WirePayload returns the JSON object sent to the backend. The friend key is
// only present when a friend was supplied, even if it is empty.
func (b Bounce) WirePayload() (map[string]any, error) {
	if !utf8.ValidString(b.title) {
		return nil, fmt.Errorf("%w: title is not valid UTF-8", ErrUnencodable)
	}
	date, err := FormatWireDate(b.date)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"title": b.title,
		"date":  date,
	}
	if b.friend != nil {
		if !utf8.ValidString(*b.friend) {
			return nil, fmt.Errorf("%w: friend is not valid UTF-8", ErrUnencodable)
		}
		payload["friend"] = *b.friend
	}
	return payload, nil
}

// FormattedDisplay renders the date in the process-local timezone.
func (b Bounce) FormattedDisplay() string {
	return b.FormattedDisplayIn(time.Local)
}

// FormattedDisplayIn renders the date in loc (UTC when loc is nil).
func (b Bounce) FormattedDisplayIn(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return b.date.In(loc).Format(displayLayout)
}

// FormatWireDate serializes t as ISO-8601 with an explicit offset or Z.
// Offsets with a seconds component cannot be written in that form, so such
// times go out in UTC. Years outside 0000-9999 are rejected.
func FormatWireDate(t time.Time) (string, error) {
	if _, off := t.Zone(); off%60 != 0 {
		t = t.UTC()
	}
	text, err := t.MarshalText()
	if err != nil {
		return "", fmt.Errorf("%w: date: %v", ErrUnencodable, err)
	}
	return string(text), nil
}

// ParseWireDate is the inverse of FormatWireDate.
func ParseWireDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// SampleBounces returns canned values for previews and tests.
func SampleBounces(now time.Time) []Bounce {
	return []Bounce{
		New("Driving Range at 4pm", now.Add(time.Hour), nil),
		New("Coffee Hangout", now.Add(2*time.Hour), nil),
	}
}
