package txpool

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/mempool/types"
)

// fakeTx is a minimal types.Transaction used across this package's tests.
// EffectiveFee mirrors the real fee-market formula (min(feeCap, baseFee+tip))
// so tests exercising base-fee-dependent behavior (scoring, pending_block,
// reconciliation) see realistic numbers.
type fakeTx struct {
	hash      types.Hash
	sender    types.Address
	senderErr error
	nonce     uint64
	gasLimit  uint64
	feeCap    *uint256.Int
	tip       *uint256.Int
	maxCost   *uint256.Int
	encoded   []byte
}

func newTx(id byte, sender byte, nonce uint64, feeCap, tip, maxCost uint64) *fakeTx {
	var h types.Hash
	h[31] = id
	var a types.Address
	a[19] = sender
	return &fakeTx{
		hash:     h,
		sender:   a,
		nonce:    nonce,
		gasLimit: 21000,
		feeCap:   uint256.NewInt(feeCap),
		tip:      uint256.NewInt(tip),
		maxCost:  uint256.NewInt(maxCost),
		encoded:  []byte{id},
	}
}

func (t *fakeTx) Hash() types.Hash { return t.hash }

func (t *fakeTx) Sender() (types.Address, error) {
	if t.senderErr != nil {
		return types.Address{}, t.senderErr
	}
	return t.sender, nil
}

func (t *fakeTx) Nonce() uint64    { return t.nonce }
func (t *fakeTx) GasLimit() uint64 { return t.gasLimit }

func (t *fakeTx) EffectiveFee(baseFee *uint256.Int) *uint256.Int {
	sum := new(uint256.Int).Add(baseFee, t.tip)
	if sum.Cmp(t.feeCap) > 0 {
		return new(uint256.Int).Set(t.feeCap)
	}
	return sum
}

func (t *fakeTx) MaxCost() *uint256.Int { return t.maxCost }
func (t *fakeTx) Encoded() []byte       { return t.encoded }

// fakeDecoder decodes raw single-byte payloads produced by newTx's Encoded
// back into the matching fakeTx, via a lookup table the test populates.
type fakeDecoder struct {
	byByte map[byte]*fakeTx
}

func newFakeDecoder(txs ...*fakeTx) *fakeDecoder {
	d := &fakeDecoder{byByte: make(map[byte]*fakeTx)}
	for _, tx := range txs {
		d.byByte[tx.encoded[0]] = tx
	}
	return d
}

var errUndecodable = errors.New("fakeDecoder: unknown payload")

func (d *fakeDecoder) Decode(raw []byte) (types.Transaction, error) {
	if len(raw) != 1 {
		return nil, errUndecodable
	}
	tx, ok := d.byByte[raw[0]]
	if !ok {
		return nil, errUndecodable
	}
	return tx, nil
}

// fakeOracle answers AccountOracle.Get from a fixed table keyed by sender.
type fakeOracle struct {
	accounts map[types.Address]types.AccountInfo
	err      error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{accounts: make(map[types.Address]types.AccountInfo)}
}

func (o *fakeOracle) set(addr types.Address, nonce uint64, balance uint64) {
	o.accounts[addr] = types.AccountInfo{Nonce: nonce, Balance: uint256.NewInt(balance)}
}

func (o *fakeOracle) Get(_ context.Context, sender types.Address, _ types.Hash) (types.AccountInfo, bool, error) {
	if o.err != nil {
		return types.AccountInfo{}, false, o.err
	}
	info, ok := o.accounts[sender]
	return info, ok, nil
}

func addrAt(sender byte) types.Address {
	var a types.Address
	a[19] = sender
	return a
}
