package metadata

import "fmt"

// Chamber is the legislative body a protocol belongs to.
type Chamber int

const (
	Unicameral Chamber = iota
	FirstChamber
	SecondChamber
)

var chamberNames = map[Chamber]string{
	Unicameral:    "unicameral",
	FirstChamber:  "first_chamber",
	SecondChamber: "second_chamber",
}

// Labels used in the corpus metadata tables.
var chamberLabels = map[Chamber]string{
	Unicameral:    "Enkammarriksdagen",
	FirstChamber:  "Första kammaren",
	SecondChamber: "Andra kammaren",
}

func (c Chamber) String() string {
	if s, ok := chamberNames[c]; ok {
		return s
	}
	return fmt.Sprintf("chamber(%d)", int(c))
}

// Label returns the chamber name as written in corpus metadata files.
func (c Chamber) Label() string {
	if s, ok := chamberLabels[c]; ok {
		return s
	}
	return c.String()
}

// ParseChamber accepts either a corpus label or a String() name.
func ParseChamber(s string) (Chamber, error) {
	for c, label := range chamberLabels {
		if s == label || s == chamberNames[c] {
			return c, nil
		}
	}
	return Unicameral, fmt.Errorf("unknown chamber %q", s)
}

func (c Chamber) MarshalText() ([]byte, error) {
	if _, ok := chamberLabels[c]; !ok {
		return nil, fmt.Errorf("invalid chamber %d", int(c))
	}
	return []byte(c.Label()), nil
}

func (c *Chamber) UnmarshalText(b []byte) error {
	parsed, err := ParseChamber(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
