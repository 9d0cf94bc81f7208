package batching

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/multicall-batcher/internal/apperror"
	"github.com/fd1az/multicall-batcher/internal/config"
)

func TestSeedCalls(t *testing.T) {
	calls, err := SeedCalls([]config.CallConfig{
		{Target: "0x000000000000000000000000000000000000dEaD", CallData: "0x70a08231", AllowFailure: true},
		{Target: "0x1111111111111111111111111111111111111111", CallData: "0x"},
	})
	if err != nil {
		t.Fatalf("SeedCalls: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Target != common.HexToAddress("0xdead") || len(calls[0].CallData) != 4 || !calls[0].AllowFailure {
		t.Errorf("call 0 = %+v", calls[0])
	}
	if len(calls[1].CallData) != 0 {
		t.Errorf("call 1 data = %x", calls[1].CallData)
	}
}

func TestSeedCalls_BadHex(t *testing.T) {
	_, err := SeedCalls([]config.CallConfig{{Target: "0x1111111111111111111111111111111111111111", CallData: "zz"}})
	if apperror.GetCode(err) != apperror.CodeInvalidFormat {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
}
