package features

import "strings"

type set map[string]struct{}

func newSet(codes []string) set {
	s := make(set, len(codes))
	for _, c := range codes {
		s[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	return s
}

func (s set) has(code string) bool {
	_, ok := s[code]
	return ok
}

// Airports holds the hub and regional membership sets used by the
// departure pipeline.
type Airports struct {
	hubs, west, east, central set
}

// NewAirports builds the membership sets from IATA code lists.
func NewAirports(hubs, westCoast, eastCoast, central []string) Airports {
	return Airports{
		hubs:    newSet(hubs),
		west:    newSet(westCoast),
		east:    newSet(eastCoast),
		central: newSet(central),
	}
}

// IsHub reports hub membership.
func (a Airports) IsHub(code string) bool { return a.hubs.has(code) }
