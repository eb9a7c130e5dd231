package request

// Classifier maps HTTP statuses and platform business codes onto failure
// kinds. The platform rotates its risk-control codes from time to time, so
// the tables come from config rather than being baked in.
type Classifier struct {
	riskStatuses map[int]bool
	riskCodes    map[int64]bool
	authStatuses map[int]bool
	authCodes    map[int64]bool
}

// NewClassifier builds a classifier from code tables.
func NewClassifier(riskStatuses []int, riskCodes []int64, authStatuses []int, authCodes []int64) Classifier {
	return Classifier{
		riskStatuses: intSet(riskStatuses),
		riskCodes:    int64Set(riskCodes),
		authStatuses: intSet(authStatuses),
		authCodes:    int64Set(authCodes),
	}
}

// DefaultClassifier returns the code tables observed in the wild as of the
// current platform behavior. Overridable via config.
func DefaultClassifier() Classifier {
	return NewClassifier(
		[]int{412},
		[]int64{-412, -352},
		[]int{401, 403},
		[]int64{-101, -111},
	)
}

// outcome of classifying a single attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeFatal
)

// Classify inspects the HTTP status and the envelope business code of one
// attempt. allowed holds business codes the caller treats as data rather
// than failure (e.g. "QR not scanned yet").
func (c Classifier) Classify(status int, code int64, allowed map[int64]bool) (outcome, Kind) {
	switch {
	case c.riskStatuses[status] || c.riskCodes[code]:
		return outcomeRetry, KindRiskControl
	case status >= 500:
		return outcomeRetry, KindNetworkTransient
	case status >= 200 && status < 300 && (code == 0 || allowed[code]):
		return outcomeSuccess, 0
	case c.authStatuses[status] || c.authCodes[code]:
		return outcomeFatal, KindAuthRejected
	case status >= 400:
		return outcomeFatal, KindValidation
	default:
		return outcomeFatal, KindRemoteBusiness
	}
}

func intSet(items []int) map[int]bool {
	set := make(map[int]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func int64Set(items []int64) map[int64]bool {
	set := make(map[int64]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
