package domain

// RuleSpec is an unparsed ignore or strip rule as written in the config file
type RuleSpec struct {
	Source string
	Find   string
}

// DigestConfig is an unparsed digest table as written in the config file
type DigestConfig struct {
	Interval string
	IDSource string
	IDFind   string
	Link     string
	Title    string
	Partial  bool
}

// Options is the sparse property bag of one configuration node.
// A nil field means the key was not set at that level.
type Options struct {
	MaxEntryNum *int
	MaxEntryAge *int
	MaxImgWidth *int
	FullContent *bool
	Sort        *bool
	Hide        *bool
	DateFormat  *string
	Timezone    *string
	TZOffset    *float64
}

// Set returns the names of the keys set in o, in a fixed order
func (o Options) Set() []string {
	var keys []string
	if o.MaxEntryNum != nil {
		keys = append(keys, "max_entry_num")
	}
	if o.MaxEntryAge != nil {
		keys = append(keys, "max_entry_age")
	}
	if o.MaxImgWidth != nil {
		keys = append(keys, "max_img_width")
	}
	if o.FullContent != nil {
		keys = append(keys, "full_content")
	}
	if o.Sort != nil {
		keys = append(keys, "sort")
	}
	if o.Hide != nil {
		keys = append(keys, "hide")
	}
	if o.DateFormat != nil {
		keys = append(keys, "date_format")
	}
	if o.Timezone != nil {
		keys = append(keys, "timezone")
	}
	if o.TZOffset != nil {
		keys = append(keys, "tzoffset")
	}
	return keys
}
