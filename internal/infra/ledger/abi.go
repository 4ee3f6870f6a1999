package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract ABIs, reduced to the calls and events this client uses.
// Both contracts live on Arbitrum Sepolia (testnet0).

const sessionABIJSON = `[
	{"type":"function","name":"getSession","stateMutability":"view","inputs":[{"name":"sessionId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"id","type":"uint256"},{"name":"name","type":"string"},{"name":"metadata","type":"string"},{"name":"owner","type":"address"},{"name":"variableAddress","type":"address"},{"name":"minNumOfNodes","type":"uint256"},{"name":"maxNumOfNodes","type":"uint256"},{"name":"redundant","type":"uint256"},{"name":"numOfValidatorNodes","type":"uint256"},{"name":"mode","type":"uint256"},{"name":"reserveEphemeralNodes","type":"bool"},{"name":"sla","type":"uint256"},{"name":"modelIdentifier","type":"uint256"},{"name":"reservePeriod","type":"uint256"},{"name":"maxTaskExecutionCount","type":"uint256"},{"name":"active","type":"bool"},{"name":"createdAt","type":"uint256"},{"name":"updatedAt","type":"uint256"}]}]},
	{"type":"function","name":"getSessionsByAddress","stateMutability":"view","inputs":[{"name":"userAddr","type":"address"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"id","type":"uint256"},{"name":"name","type":"string"},{"name":"metadata","type":"string"},{"name":"owner","type":"address"},{"name":"variableAddress","type":"address"},{"name":"minNumOfNodes","type":"uint256"},{"name":"maxNumOfNodes","type":"uint256"},{"name":"redundant","type":"uint256"},{"name":"numOfValidatorNodes","type":"uint256"},{"name":"mode","type":"uint256"},{"name":"reserveEphemeralNodes","type":"bool"},{"name":"sla","type":"uint256"},{"name":"modelIdentifier","type":"uint256"},{"name":"reservePeriod","type":"uint256"},{"name":"maxTaskExecutionCount","type":"uint256"},{"name":"active","type":"bool"},{"name":"createdAt","type":"uint256"},{"name":"updatedAt","type":"uint256"}]}]},
	{"type":"function","name":"getEphemeralNodes","stateMutability":"view","inputs":[{"name":"sessionId","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]}
]`

const queueABIJSON = `[
	{"type":"function","name":"submit","stateMutability":"nonpayable","inputs":[{"name":"sessionId","type":"uint256"},{"name":"taskData","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTasksBySessionId","stateMutability":"view","inputs":[{"name":"sessionId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"id","type":"uint256"},{"name":"sessionId","type":"uint256"},{"name":"globalId","type":"uint256"},{"name":"taskData","type":"string"},{"name":"assignedMiners","type":"address[]"},{"name":"status","type":"uint256"},{"name":"createdAt","type":"uint256"},{"name":"endedAt","type":"uint256"}]}]},
	{"type":"function","name":"getTaskResults","stateMutability":"view","inputs":[{"name":"sessionId","type":"uint256"},{"name":"taskId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"miner","type":"address"},{"name":"result","type":"string"},{"name":"timestamp","type":"uint256"}]}]},
	{"type":"event","name":"TaskQueued","anonymous":false,"inputs":[{"name":"sessionId","type":"uint256","indexed":true},{"name":"taskId","type":"uint256","indexed":true},{"name":"globalId","type":"uint256","indexed":false},{"name":"taskData","type":"string","indexed":false}]},
	{"type":"event","name":"TaskEnded","anonymous":false,"inputs":[{"name":"sessionId","type":"uint256","indexed":true},{"name":"taskId","type":"uint256","indexed":true},{"name":"miners","type":"address[]","indexed":false}]}
]`

var (
	sessionABI = mustParseABI(sessionABIJSON)
	queueABI   = mustParseABI(queueABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("ledger: invalid contract ABI: " + err.Error())
	}
	return parsed
}

// sessionTuple mirrors the SessionV2 session struct field for field.
type sessionTuple struct {
	Id                    *big.Int
	Name                  string
	Metadata              string
	Owner                 common.Address
	VariableAddress       common.Address
	MinNumOfNodes         *big.Int
	MaxNumOfNodes         *big.Int
	Redundant             *big.Int
	NumOfValidatorNodes   *big.Int
	Mode                  *big.Int
	ReserveEphemeralNodes bool
	Sla                   *big.Int
	ModelIdentifier       *big.Int
	ReservePeriod         *big.Int
	MaxTaskExecutionCount *big.Int
	Active                bool
	CreatedAt             *big.Int
	UpdatedAt             *big.Int
}

// taskTuple mirrors the SessionQueueV2 task struct.
type taskTuple struct {
	Id             *big.Int
	SessionId      *big.Int
	GlobalId       *big.Int
	TaskData       string
	AssignedMiners []common.Address
	Status         *big.Int
	CreatedAt      *big.Int
	EndedAt        *big.Int
}

// resultTuple mirrors one entry of getTaskResults.
type resultTuple struct {
	Miner     common.Address
	Result    string
	Timestamp *big.Int
}
