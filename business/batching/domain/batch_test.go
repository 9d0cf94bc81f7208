package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func queued(id uint64) QueuedCall {
	return QueuedCall{ID: id, Call: NewCall(common.BigToAddress(common.Big1), []byte{byte(id)}, false)}
}

func estimated(id, gas uint64) EstimatedCall {
	return EstimatedCall{QueuedCall: queued(id), Gas: gas}
}

func TestBuildBatch(t *testing.T) {
	tests := []struct {
		name      string
		calls     []EstimatedCall
		wantIDs   []uint64
		wantTotal uint64
	}{
		{
			name:      "stops at first overflow",
			calls:     []EstimatedCall{estimated(1, 1_000_000), estimated(2, 2_500_000), estimated(3, 100_000)},
			wantIDs:   []uint64{1},
			wantTotal: 1_000_000,
		},
		{
			name:      "exactly at ceiling",
			calls:     []EstimatedCall{estimated(1, 2_000_000), estimated(2, 1_000_000)},
			wantIDs:   []uint64{1, 2},
			wantTotal: GasCeiling,
		},
		{
			name:    "oversized first call",
			calls:   []EstimatedCall{estimated(1, GasCeiling+1), estimated(2, 10)},
			wantIDs: nil,
		},
		{
			name:    "empty input",
			calls:   nil,
			wantIDs: nil,
		},
		{
			name:      "huge estimate does not wrap",
			calls:     []EstimatedCall{estimated(1, 10), estimated(2, ^uint64(0))},
			wantIDs:   []uint64{1},
			wantTotal: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BuildBatch(tt.calls, GasCeiling)

			if got := IDs(b.QueuedCalls()); !equalIDs(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
			if b.TotalGas != tt.wantTotal {
				t.Errorf("total = %d, want %d", b.TotalGas, tt.wantTotal)
			}
			if b.TotalGas > GasCeiling {
				t.Errorf("total %d exceeds ceiling", b.TotalGas)
			}
			if b.Empty() != (len(tt.wantIDs) == 0) {
				t.Errorf("Empty() = %v", b.Empty())
			}
		})
	}
}

func TestBuildBatch_PreservesOrder(t *testing.T) {
	var calls []EstimatedCall
	for i := uint64(1); i <= 50; i++ {
		calls = append(calls, estimated(i, 50_000+i*1_000))
	}

	b := BuildBatch(calls, GasCeiling)
	for i, c := range b.Calls {
		if c.ID != uint64(i+1) {
			t.Fatalf("position %d holds id %d", i, c.ID)
		}
	}
}

func TestPartition(t *testing.T) {
	results := []Estimation{
		{QueuedCall: queued(1), Estimate: KnownGas(100)},
		{QueuedCall: queued(2), Estimate: UnknownGas()},
		{QueuedCall: queued(3), Estimate: KnownGas(0)},
	}

	est, failed := Partition(results)

	if len(est) != 2 || est[0].ID != 1 || est[1].ID != 3 || est[0].Gas != 100 {
		t.Errorf("estimated = %+v", est)
	}
	if len(failed) != 1 || failed[0].ID != 2 {
		t.Errorf("failed = %+v", failed)
	}

	// a failed call never reaches the batch
	for _, c := range BuildBatch(est, GasCeiling).Calls {
		if c.ID == 2 {
			t.Error("unknown-gas call was batched")
		}
	}
}

func TestNewCall_CopiesData(t *testing.T) {
	data := []byte{1, 2, 3}
	c := NewCall(common.Address{1}, data, true)
	data[0] = 9

	if c.CallData[0] != 1 {
		t.Error("call data aliased caller slice")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := (Call{}).Validate(); err == nil {
		t.Error("zero target should be rejected")
	}
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
