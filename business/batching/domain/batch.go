package domain

// GasCeiling is the gas budget of one batch.
const GasCeiling uint64 = 3_000_000

// GasEstimate is either a known gas amount or unknown (the estimation failed).
type GasEstimate struct {
	units uint64
	known bool
}

// KnownGas returns an estimate of units.
func KnownGas(units uint64) GasEstimate {
	return GasEstimate{units: units, known: true}
}

// UnknownGas returns the failed estimate.
func UnknownGas() GasEstimate {
	return GasEstimate{}
}

// Units returns the estimate and whether it is known.
func (g GasEstimate) Units() (uint64, bool) {
	return g.units, g.known
}

// Estimation pairs a queued call with its estimate.
type Estimation struct {
	QueuedCall
	Estimate GasEstimate
}

// EstimatedCall is a queued call whose gas is known.
type EstimatedCall struct {
	QueuedCall
	Gas uint64
}

// Partition splits results into known and unknown, preserving order.
func Partition(results []Estimation) (estimated []EstimatedCall, failed []QueuedCall) {
	for _, p := range results {
		if units, ok := p.Estimate.Units(); ok {
			estimated = append(estimated, EstimatedCall{QueuedCall: p.QueuedCall, Gas: units})
			continue
		}
		failed = append(failed, p.QueuedCall)
	}
	return estimated, failed
}

// Batch is the set of calls selected for one aggregate transaction.
type Batch struct {
	Calls    []EstimatedCall
	TotalGas uint64
}

// Empty reports whether the batch selected nothing.
func (b Batch) Empty() bool {
	return len(b.Calls) == 0
}

// QueuedCalls returns the batched calls without their estimates.
func (b Batch) QueuedCalls() []QueuedCall {
	out := make([]QueuedCall, len(b.Calls))
	for i, c := range b.Calls {
		out[i] = c.QueuedCall
	}
	return out
}

// Targets returns the bare calls in batch order.
func (b Batch) Targets() []Call {
	out := make([]Call, len(b.Calls))
	for i, c := range b.Calls {
		out[i] = c.Call
	}
	return out
}

// BuildBatch takes the longest prefix of calls whose summed gas stays within
// ceiling. It stops at the first call that would overflow; later cheaper calls
// are not considered.
func BuildBatch(calls []EstimatedCall, ceiling uint64) Batch {
	var b Batch
	for _, c := range calls {
		// written as a subtraction so a huge estimate cannot wrap the sum
		if c.Gas > ceiling-b.TotalGas {
			break
		}
		b.Calls = append(b.Calls, c)
		b.TotalGas += c.Gas
	}
	return b
}
