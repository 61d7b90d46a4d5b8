// ABOUTME: Group aggregator merges member feeds into one virtual feed
// ABOUTME: Combines member configuration deterministically and unions member entries

package group

import (
	"fmt"
	"reflect"

	"digests-builder/core/domain"
)

// Member is one feed of a group as declared in the config file
type Member struct {
	// Name identifies the member in warnings, usually its URL
	Name    string
	Options domain.Options
}

// Conflict records a key set on more than one member
type Conflict struct {
	Key     string
	Members []string
	Winner  string

	// Differs is set when the members disagree on the value
	Differs bool
}

// String formats the conflict for a warning
func (c Conflict) String() string {
	return fmt.Sprintf("key '%s' set on %d members %v, using %s", c.Key, len(c.Members), c.Members, c.Winner)
}

type optionField struct {
	key   string
	get   func(o *domain.Options) interface{}
	apply func(dst *domain.Options, src *domain.Options)
}

var optionFields = []optionField{
	{"max_entry_num", func(o *domain.Options) interface{} { return o.MaxEntryNum }, func(d, s *domain.Options) { d.MaxEntryNum = s.MaxEntryNum }},
	{"max_entry_age", func(o *domain.Options) interface{} { return o.MaxEntryAge }, func(d, s *domain.Options) { d.MaxEntryAge = s.MaxEntryAge }},
	{"max_img_width", func(o *domain.Options) interface{} { return o.MaxImgWidth }, func(d, s *domain.Options) { d.MaxImgWidth = s.MaxImgWidth }},
	{"full_content", func(o *domain.Options) interface{} { return o.FullContent }, func(d, s *domain.Options) { d.FullContent = s.FullContent }},
	{"sort", func(o *domain.Options) interface{} { return o.Sort }, func(d, s *domain.Options) { d.Sort = s.Sort }},
	{"hide", func(o *domain.Options) interface{} { return o.Hide }, func(d, s *domain.Options) { d.Hide = s.Hide }},
	{"date_format", func(o *domain.Options) interface{} { return o.DateFormat }, func(d, s *domain.Options) { d.DateFormat = s.DateFormat }},
	{"timezone", func(o *domain.Options) interface{} { return o.Timezone }, func(d, s *domain.Options) { d.Timezone = s.Timezone }},
	{"tzoffset", func(o *domain.Options) interface{} { return o.TZOffset }, func(d, s *domain.Options) { d.TZOffset = s.TZOffset }},
}

// MergeOptions folds member options into one property bag.
// For each key the first member in declaration order that sets it wins.
// Every key set on more than one member is reported as a conflict.
func MergeOptions(members []Member) (domain.Options, []Conflict) {
	var merged domain.Options
	var conflicts []Conflict

	for _, f := range optionFields {
		var setters []string
		var winner string
		var winnerValue interface{}
		differs := false

		for i := range members {
			m := &members[i]
			v := f.get(&m.Options)
			if reflect.ValueOf(v).IsNil() {
				continue
			}
			setters = append(setters, m.Name)
			if winner == "" {
				winner = m.Name
				winnerValue = reflect.ValueOf(v).Elem().Interface()
				f.apply(&merged, &m.Options)
				continue
			}
			if reflect.ValueOf(v).Elem().Interface() != winnerValue {
				differs = true
			}
		}

		if len(setters) > 1 {
			conflicts = append(conflicts, Conflict{Key: f.key, Members: setters, Winner: winner, Differs: differs})
		}
	}

	return merged, conflicts
}

// Aggregate unions member entry sequences into one, drops duplicates and
// orders the result newest first. Members earlier in the slice win duplicates.
func Aggregate(members [][]domain.Entry) []domain.Entry {
	total := 0
	for _, m := range members {
		total += len(m)
	}

	all := make([]domain.Entry, 0, total)
	for _, m := range members {
		all = append(all, m...)
	}

	all = domain.Dedupe(all)
	domain.SortNewestFirst(all)
	return all
}
