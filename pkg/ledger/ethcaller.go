package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// contractABI is the subset of the tracking contract surface this module
// touches. Maintained by hand against the deployed artifact.
const contractABI = `[
  {"type":"function","stateMutability":"view","name":"admin","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"nextShipmentId","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"nextCheckpointId","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"nextIncidentId","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getActor","inputs":[{"name":"actorAddress","type":"address"}],"outputs":[{"name":"","type":"tuple","components":[
    {"name":"actorAddress","type":"address"},
    {"name":"name","type":"string"},
    {"name":"role","type":"uint8"},
    {"name":"location","type":"string"},
    {"name":"isActive","type":"bool"},
    {"name":"approvalStatus","type":"uint8"}]}]},
  {"type":"function","stateMutability":"view","name":"getShipment","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
    {"name":"id","type":"uint256"},
    {"name":"sender","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"product","type":"string"},
    {"name":"origin","type":"string"},
    {"name":"destination","type":"string"},
    {"name":"dateCreated","type":"uint256"},
    {"name":"dateEstimatedDelivery","type":"uint256"},
    {"name":"dateDelivered","type":"uint256"},
    {"name":"status","type":"uint8"},
    {"name":"checkpointIds","type":"uint256[]"},
    {"name":"incidentIds","type":"uint256[]"},
    {"name":"requiresColdChain","type":"bool"},
    {"name":"minTemperature","type":"int256"},
    {"name":"maxTemperature","type":"int256"}]}]},
  {"type":"function","stateMutability":"view","name":"getCheckpoint","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
    {"name":"id","type":"uint256"},
    {"name":"shipmentId","type":"uint256"},
    {"name":"actor","type":"address"},
    {"name":"location","type":"string"},
    {"name":"checkpointType","type":"string"},
    {"name":"timestamp","type":"uint256"},
    {"name":"notes","type":"string"},
    {"name":"temperature","type":"int256"},
    {"name":"latitude","type":"int256"},
    {"name":"longitude","type":"int256"},
    {"name":"hasDamage","type":"bool"}]}]},
  {"type":"function","stateMutability":"view","name":"getIncident","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
    {"name":"id","type":"uint256"},
    {"name":"shipmentId","type":"uint256"},
    {"name":"incidentType","type":"uint8"},
    {"name":"reporter","type":"address"},
    {"name":"description","type":"string"},
    {"name":"timestamp","type":"uint256"},
    {"name":"resolved","type":"bool"}]}]},
  {"type":"function","stateMutability":"view","name":"getShipmentCheckpoints","inputs":[{"name":"shipmentId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[
    {"name":"id","type":"uint256"},
    {"name":"shipmentId","type":"uint256"},
    {"name":"actor","type":"address"},
    {"name":"location","type":"string"},
    {"name":"checkpointType","type":"string"},
    {"name":"timestamp","type":"uint256"},
    {"name":"notes","type":"string"},
    {"name":"temperature","type":"int256"},
    {"name":"latitude","type":"int256"},
    {"name":"longitude","type":"int256"},
    {"name":"hasDamage","type":"bool"}]}]},
  {"type":"function","stateMutability":"view","name":"getShipmentIncidents","inputs":[{"name":"shipmentId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[
    {"name":"id","type":"uint256"},
    {"name":"shipmentId","type":"uint256"},
    {"name":"incidentType","type":"uint8"},
    {"name":"reporter","type":"address"},
    {"name":"description","type":"string"},
    {"name":"timestamp","type":"uint256"},
    {"name":"resolved","type":"bool"}]}]},
  {"type":"function","stateMutability":"view","name":"getActorShipments","inputs":[{"name":"actorAddress","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","stateMutability":"nonpayable","name":"registerActor","inputs":[
    {"name":"name","type":"string"},
    {"name":"role","type":"uint8"},
    {"name":"location","type":"string"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"setActorApprovalStatus","inputs":[
    {"name":"actorAddress","type":"address"},
    {"name":"status","type":"uint8"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"createShipment","inputs":[
    {"name":"recipient","type":"address"},
    {"name":"product","type":"string"},
    {"name":"origin","type":"string"},
    {"name":"destination","type":"string"},
    {"name":"dateEstimatedDelivery","type":"uint256"},
    {"name":"requiresColdChain","type":"bool"},
    {"name":"minTemperature","type":"int256"},
    {"name":"maxTemperature","type":"int256"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"recordCheckpoint","inputs":[
    {"name":"shipmentId","type":"uint256"},
    {"name":"location","type":"string"},
    {"name":"checkpointType","type":"string"},
    {"name":"notes","type":"string"},
    {"name":"temperature","type":"int256"},
    {"name":"latitude","type":"int256"},
    {"name":"longitude","type":"int256"},
    {"name":"hasDamage","type":"bool"}],"outputs":[]},
  {"type":"event","name":"ActorRegistered","inputs":[
    {"name":"actorAddress","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"role","type":"uint8","indexed":false}],"anonymous":false},
  {"type":"event","name":"ShipmentCreated","inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"sender","type":"address","indexed":true},
    {"name":"recipient","type":"address","indexed":true}],"anonymous":false},
  {"type":"event","name":"CheckpointRecorded","inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"shipmentId","type":"uint256","indexed":true},
    {"name":"actor","type":"address","indexed":true}],"anonymous":false},
  {"type":"event","name":"IncidentReported","inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"shipmentId","type":"uint256","indexed":true},
    {"name":"incidentType","type":"uint8","indexed":false}],"anonymous":false}
]`

// EthCaller backs the Caller interface with a JSON-RPC node. It does the
// minimum shaping: ABI decode plus error classification, leaving record
// normalization to the Reader.
type EthCaller struct {
	client  *ethclient.Client
	bound   *bind.BoundContract
	abi     abi.ABI
	address common.Address
}

func NewEthCaller(rpcURL, contractAddr string) (*EthCaller, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return newEthCaller(client, contractAddr)
}

func newEthCaller(client *ethclient.Client, contractAddr string) (*EthCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	addr := common.HexToAddress(contractAddr)
	return &EthCaller{
		client:  client,
		bound:   bind.NewBoundContract(addr, parsed, client, client, client),
		abi:     parsed,
		address: addr,
	}, nil
}

func (c *EthCaller) Call(ctx context.Context, method string, args ...any) (any, error) {
	abiArgs, err := c.convertArgs(method, args)
	if err != nil {
		return nil, err
	}
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, abiArgs...); err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%w: %s reverted: %v", ErrRecordNotFound, method, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLedgerUnavailable, method, err)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func (c *EthCaller) RegistrationLog(ctx context.Context) ([]string, error) {
	logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events["ActorRegistered"].ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: filter registration log: %v", ErrLedgerUnavailable, err)
	}
	addrs := make([]string, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 2 {
			continue
		}
		addrs = append(addrs, common.BytesToAddress(lg.Topics[1].Bytes()).Hex())
	}
	return addrs, nil
}

// ContractEvents returns decoded logs for the named event over a block range.
// toBlock < 0 means the latest block.
func (c *EthCaller) ContractEvents(ctx context.Context, event string, fromBlock, toBlock int64) ([]map[string]any, error) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown contract event %q", event)
	}
	q := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{ev.ID}},
	}
	if toBlock >= 0 {
		q.ToBlock = big.NewInt(toBlock)
	}
	logs, err := c.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: filter %s: %v", ErrLedgerUnavailable, event, err)
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	out := make([]map[string]any, 0, len(logs))
	for _, lg := range logs {
		args := map[string]any{}
		if len(lg.Data) > 0 {
			if err := c.abi.UnpackIntoMap(args, event, lg.Data); err != nil {
				return nil, fmt.Errorf("decode %s data: %w", event, err)
			}
		}
		if len(indexed) > 0 && len(lg.Topics) > 1 {
			if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
				return nil, fmt.Errorf("decode %s topics: %w", event, err)
			}
		}
		for k, v := range args {
			switch t := v.(type) {
			case common.Address:
				args[k] = t.Hex()
			case *big.Int:
				args[k] = t.String()
			}
		}
		out = append(out, map[string]any{
			"block_number":     lg.BlockNumber,
			"transaction_hash": lg.TxHash.Hex(),
			"log_index":        lg.Index,
			"args":             args,
		})
	}
	return out, nil
}

// convertArgs maps the module's plain types onto the ABI input types so
// callers never handle common.Address or *big.Int directly.
func (c *EthCaller) convertArgs(method string, args []any) ([]any, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown contract method %q", method)
	}
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s: got %d args, want %d", method, len(args), len(m.Inputs))
	}
	out := make([]any, len(args))
	for i, input := range m.Inputs {
		v := args[i]
		switch input.Type.T {
		case abi.AddressTy:
			out[i] = common.HexToAddress(asString(v))
		case abi.UintTy, abi.IntTy:
			if input.Type.Size == 8 {
				out[i] = uint8(asInt64(v))
			} else {
				out[i] = big.NewInt(asInt64(v))
			}
		default:
			out[i] = v
		}
	}
	return out, nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

// EthSubmitter signs and sends state-changing calls with a locally held key
// and blocks until the transaction is mined.
type EthSubmitter struct {
	caller *EthCaller
	opts   *bind.TransactOpts
}

func NewEthSubmitter(caller *EthCaller, privateKeyHex string, chainID *big.Int) (*EthSubmitter, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return &EthSubmitter{caller: caller, opts: opts}, nil
}

// From reports the submitting wallet address.
func (s *EthSubmitter) From() string { return s.opts.From.Hex() }

func (s *EthSubmitter) Submit(ctx context.Context, method string, args ...any) error {
	abiArgs, err := s.caller.convertArgs(method, args)
	if err != nil {
		return err
	}
	opts := *s.opts
	opts.Context = ctx
	tx, err := s.caller.bound.Transact(&opts, method, abiArgs...)
	if err != nil {
		// Gas estimation runs the call first, so a rejected transition
		// fails here with the revert reason attached.
		if isRevert(err) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrLedgerUnavailable, method, err)
	}
	receipt, err := bind.WaitMined(ctx, s.caller.client, tx)
	if err != nil {
		return fmt.Errorf("%w: wait mined %s: %v", ErrLedgerUnavailable, tx.Hash(), err)
	}
	if receipt.Status != 1 {
		return fmt.Errorf("%w: %s transaction %s reverted", ErrUnauthorized, method, tx.Hash())
	}
	return nil
}

// Node-level reads for diagnostics surfaces. These bypass the contract and
// talk to the chain directly.

func (c *EthCaller) Balance(ctx context.Context, account string) (string, error) {
	bal, err := c.client.BalanceAt(ctx, common.HexToAddress(account), nil)
	if err != nil {
		return "", fmt.Errorf("%w: balance: %v", ErrLedgerUnavailable, err)
	}
	return bal.String(), nil
}

// BlockInfo describes a block; number < 0 means the latest.
func (c *EthCaller) BlockInfo(ctx context.Context, number int64) (map[string]any, error) {
	var n *big.Int
	if number >= 0 {
		n = big.NewInt(number)
	}
	blk, err := c.client.BlockByNumber(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("%w: block: %v", ErrLedgerUnavailable, err)
	}
	return map[string]any{
		"number":       blk.NumberU64(),
		"hash":         blk.Hash().Hex(),
		"parent_hash":  blk.ParentHash().Hex(),
		"timestamp":    blk.Time(),
		"transactions": len(blk.Transactions()),
		"gas_used":     blk.GasUsed(),
	}, nil
}

func (c *EthCaller) Transaction(ctx context.Context, hash string) (map[string]any, error) {
	tx, pending, err := c.client.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %v", ErrRecordNotFound, hash, err)
	}
	out := map[string]any{
		"hash":    tx.Hash().Hex(),
		"nonce":   tx.Nonce(),
		"value":   tx.Value().String(),
		"gas":     tx.Gas(),
		"pending": pending,
	}
	if to := tx.To(); to != nil {
		out["to"] = to.Hex()
	}
	return out, nil
}

func (c *EthCaller) TransactionReceipt(ctx context.Context, hash string) (map[string]any, error) {
	rcpt, err := c.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: receipt %s: %v", ErrRecordNotFound, hash, err)
	}
	return map[string]any{
		"transaction_hash": rcpt.TxHash.Hex(),
		"block_number":     rcpt.BlockNumber.Int64(),
		"status":           rcpt.Status,
		"gas_used":         rcpt.GasUsed,
		"logs":             len(rcpt.Logs),
	}, nil
}
