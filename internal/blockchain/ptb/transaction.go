// ==================================
// File: internal/blockchain/ptb/transaction.go
// ==================================

// Package ptb models Sui programmable transaction blocks: an ordered list of
// inputs and the commands that consume them.
package ptb

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// ClockObjectID is the shared system clock.
const ClockObjectID = "0x6"

type ArgumentKind uint8

const (
	ArgGasCoin ArgumentKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

// Argument refers to a value available to a command.
type Argument struct {
	Kind     ArgumentKind
	Index    uint16
	SubIndex uint16
}

// GasCoin is the coin paying for gas.
var GasCoin = Argument{Kind: ArgGasCoin}

func (a Argument) String() string {
	switch a.Kind {
	case ArgGasCoin:
		return "GasCoin"
	case ArgInput:
		return fmt.Sprintf("Input(%d)", a.Index)
	case ArgResult:
		return fmt.Sprintf("Result(%d)", a.Index)
	default:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.SubIndex)
	}
}

type InputKind uint8

const (
	InputPure InputKind = iota
	InputObject
)

// ObjectRef pins an owned or immutable object at a version.
type ObjectRef struct {
	ObjectID string
	Version  uint64
	Digest   string
}

// Input is a transaction input. Object inputs start unresolved and are
// filled in by the chain client with either Ref or InitialSharedVersion.
type Input struct {
	Kind     InputKind
	Pure     []byte
	ObjectID string
	Mutable  bool

	Ref                  *ObjectRef
	InitialSharedVersion *uint64
}

// Resolved reports whether an object input carries its chain reference.
func (in Input) Resolved() bool {
	return in.Kind == InputPure || in.Ref != nil || in.InitialSharedVersion != nil
}

// Command is one of MoveCall, TransferObjects, SplitCoins or MergeCoins.
type Command interface {
	command()
}

type MoveCall struct {
	Package       string
	Module        string
	Function      string
	TypeArguments []string
	Arguments     []Argument
}

type TransferObjects struct {
	Objects []Argument
	Address Argument
}

type SplitCoins struct {
	Coin    Argument
	Amounts []Argument
}

type MergeCoins struct {
	Destination Argument
	Sources     []Argument
}

func (MoveCall) command()        {}
func (TransferObjects) command() {}
func (SplitCoins) command()      {}
func (MergeCoins) command()      {}

// Target returns pkg::module::function.
func (m MoveCall) Target() string {
	return m.Package + "::" + m.Module + "::" + m.Function
}

// Transaction is a programmable transaction under construction.
type Transaction struct {
	Sender     string
	GasBudget  uint64
	GasPrice   uint64
	GasPayment []ObjectRef

	Inputs   []Input
	Commands []Command

	objects map[string]uint16
}

// New creates an empty transaction.
func New() *Transaction {
	return &Transaction{objects: make(map[string]uint16)}
}

func (t *Transaction) addInput(in Input) Argument {
	t.Inputs = append(t.Inputs, in)
	return Argument{Kind: ArgInput, Index: uint16(len(t.Inputs) - 1)}
}

// Pure adds an already BCS-encoded pure value.
func (t *Transaction) Pure(b []byte) Argument {
	return t.addInput(Input{Kind: InputPure, Pure: b})
}

func (t *Transaction) PureU64(v uint64) Argument {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return t.Pure(b)
}

func (t *Transaction) PureBool(v bool) Argument {
	if v {
		return t.Pure([]byte{1})
	}
	return t.Pure([]byte{0})
}

func (t *Transaction) PureAddress(addr string) (Argument, error) {
	b, err := AddressBytes(addr)
	if err != nil {
		return Argument{}, err
	}
	return t.Pure(b[:]), nil
}

// Object adds a mutable object input. The same id is only added once.
func (t *Transaction) Object(id string) Argument {
	return t.object(id, true)
}

// ReadOnlyObject adds an object that is only read, such as the clock.
func (t *Transaction) ReadOnlyObject(id string) Argument {
	return t.object(id, false)
}

func (t *Transaction) object(id string, mutable bool) Argument {
	if t.objects == nil {
		t.objects = make(map[string]uint16)
	}
	key := NormalizeAddress(id)
	if idx, ok := t.objects[key]; ok {
		if mutable {
			t.Inputs[idx].Mutable = true
		}
		return Argument{Kind: ArgInput, Index: idx}
	}
	arg := t.addInput(Input{Kind: InputObject, ObjectID: key, Mutable: mutable})
	t.objects[key] = arg.Index
	return arg
}

// ObjectWithRef adds an owned object whose reference is already known, so
// the client does not need to fetch it.
func (t *Transaction) ObjectWithRef(ref ObjectRef) Argument {
	arg := t.Object(ref.ObjectID)
	r := ref
	r.ObjectID = NormalizeAddress(ref.ObjectID)
	t.Inputs[arg.Index].Ref = &r
	return arg
}

func (t *Transaction) add(c Command) Argument {
	t.Commands = append(t.Commands, c)
	return Argument{Kind: ArgResult, Index: uint16(len(t.Commands) - 1)}
}

// MoveCall appends a call and returns its result.
func (t *Transaction) MoveCall(pkg, module, function string, typeArgs []string, args ...Argument) Argument {
	return t.add(MoveCall{Package: pkg, Module: module, Function: function, TypeArguments: typeArgs, Arguments: args})
}

// SplitCoins splits amounts off coin and returns one result per amount.
func (t *Transaction) SplitCoins(coin Argument, amounts ...Argument) []Argument {
	res := t.add(SplitCoins{Coin: coin, Amounts: amounts})
	out := make([]Argument, len(amounts))
	for i := range amounts {
		out[i] = Argument{Kind: ArgNestedResult, Index: res.Index, SubIndex: uint16(i)}
	}
	return out
}

func (t *Transaction) MergeCoins(dst Argument, sources ...Argument) {
	t.add(MergeCoins{Destination: dst, Sources: sources})
}

func (t *Transaction) TransferObjects(objects []Argument, address Argument) {
	t.add(TransferObjects{Objects: objects, Address: address})
}

// NormalizeAddress lowercases and left-pads an address to 32 bytes.
func NormalizeAddress(addr string) string {
	s := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(addr), "0x"))
	if len(s) < 64 {
		s = strings.Repeat("0", 64-len(s)) + s
	}
	return "0x" + s
}

// AddressBytes decodes a Sui address.
func AddressBytes(addr string) ([32]byte, error) {
	var out [32]byte
	s := strings.TrimPrefix(NormalizeAddress(addr), "0x")
	if len(s) != 64 {
		return out, fmt.Errorf("invalid address %q", addr)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	copy(out[:], b)
	return out, nil
}
