package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TaskQueued is the queue's acknowledgement of a submitted task.
type TaskQueued struct {
	SessionID uint64
	TaskID    uint64
	GlobalID  uint64
	TaskData  string
}

// FindTaskQueued scans receipt logs for the TaskQueued event emitted by
// queue. A zero queue address accepts the event from any emitter. The
// bool is false when no decodable event is present.
func FindTaskQueued(logs []*types.Log, queue common.Address) (TaskQueued, bool) {
	ev := queueABI.Events["TaskQueued"]

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	for _, lg := range logs {
		if lg == nil || len(lg.Topics) != len(indexed)+1 || lg.Topics[0] != ev.ID {
			continue
		}
		if queue != (common.Address{}) && lg.Address != queue {
			continue
		}

		fields := make(map[string]any)
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			continue
		}
		if err := ev.Inputs.UnpackIntoMap(fields, lg.Data); err != nil {
			continue
		}

		out := TaskQueued{
			SessionID: bigUint(fields["sessionId"]),
			TaskID:    bigUint(fields["taskId"]),
			GlobalID:  bigUint(fields["globalId"]),
		}
		out.TaskData, _ = fields["taskData"].(string)
		return out, true
	}
	return TaskQueued{}, false
}

func bigUint(v any) uint64 {
	if b, ok := v.(*big.Int); ok && b != nil && b.IsUint64() {
		return b.Uint64()
	}
	return 0
}
