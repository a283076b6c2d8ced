package common

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

type OptionSide int

const (
	Call OptionSide = iota
	Put
)

func (s OptionSide) String() string {
	switch s {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return "unknown"
}

// Tag returns the single-letter code used in instrument identifiers.
func (s OptionSide) Tag() string {
	if s == Put {
		return "P"
	}
	return "C"
}
