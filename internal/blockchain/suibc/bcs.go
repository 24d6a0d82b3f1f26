// internal/blockchain/suibc/bcs.go
package suibc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/ptb"
)

// bcsWriter writes Binary Canonical Serialization.
type bcsWriter struct {
	buf bytes.Buffer
	err error
}

func (w *bcsWriter) uleb(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func (w *bcsWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w *bcsWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) bool(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *bcsWriter) bytes(b []byte) {
	w.uleb(uint64(len(b)))
	w.buf.Write(b)
}

func (w *bcsWriter) str(s string) { w.bytes([]byte(s)) }

func (w *bcsWriter) address(addr string) {
	b, err := ptb.AddressBytes(addr)
	if err != nil {
		w.fail(err)
		return
	}
	w.buf.Write(b[:])
}

func (w *bcsWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *bcsWriter) objectRef(ref ptb.ObjectRef) {
	w.address(ref.ObjectID)
	w.u64(ref.Version)
	digest, err := base58.Decode(ref.Digest)
	if err != nil {
		w.fail(fmt.Errorf("object %s digest: %w", ref.ObjectID, err))
		return
	}
	if len(digest) != 32 {
		w.fail(fmt.Errorf("object %s digest: want 32 bytes, got %d", ref.ObjectID, len(digest)))
		return
	}
	w.bytes(digest)
}

func (w *bcsWriter) argument(a ptb.Argument) {
	w.uleb(uint64(a.Kind))
	switch a.Kind {
	case ptb.ArgInput, ptb.ArgResult:
		w.u16(a.Index)
	case ptb.ArgNestedResult:
		w.u16(a.Index)
		w.u16(a.SubIndex)
	}
}

func (w *bcsWriter) arguments(args []ptb.Argument) {
	w.uleb(uint64(len(args)))
	for _, a := range args {
		w.argument(a)
	}
}

func (w *bcsWriter) input(in ptb.Input) {
	switch in.Kind {
	case ptb.InputPure:
		w.uleb(0)
		w.bytes(in.Pure)
	case ptb.InputObject:
		w.uleb(1)
		switch {
		case in.InitialSharedVersion != nil:
			w.uleb(1)
			w.address(in.ObjectID)
			w.u64(*in.InitialSharedVersion)
			w.bool(in.Mutable)
		case in.Ref != nil:
			w.uleb(0)
			w.objectRef(*in.Ref)
		default:
			w.fail(fmt.Errorf("object input %s is not resolved", in.ObjectID))
		}
	default:
		w.fail(fmt.Errorf("unknown input kind %d", in.Kind))
	}
}

func (w *bcsWriter) command(c ptb.Command) {
	switch cmd := c.(type) {
	case ptb.MoveCall:
		w.uleb(0)
		w.address(cmd.Package)
		w.str(cmd.Module)
		w.str(cmd.Function)
		w.uleb(uint64(len(cmd.TypeArguments)))
		for _, t := range cmd.TypeArguments {
			tag, err := ParseTypeTag(t)
			if err != nil {
				w.fail(err)
				return
			}
			w.typeTag(tag)
		}
		w.arguments(cmd.Arguments)
	case ptb.TransferObjects:
		w.uleb(1)
		w.arguments(cmd.Objects)
		w.argument(cmd.Address)
	case ptb.SplitCoins:
		w.uleb(2)
		w.argument(cmd.Coin)
		w.arguments(cmd.Amounts)
	case ptb.MergeCoins:
		w.uleb(3)
		w.argument(cmd.Destination)
		w.arguments(cmd.Sources)
	default:
		w.fail(fmt.Errorf("unsupported command %T", c))
	}
}

// TypeTag variants in Move's on-chain order.
const (
	tagBool uint8 = iota
	tagU8
	tagU64
	tagU128
	tagAddress
	tagSigner
	tagVector
	tagStruct
	tagU16
	tagU32
	tagU256
)

var primitiveTags = map[string]uint8{
	"bool": tagBool, "u8": tagU8, "u16": tagU16, "u32": tagU32, "u64": tagU64,
	"u128": tagU128, "u256": tagU256, "address": tagAddress, "signer": tagSigner,
}

// TypeTag is a parsed Move type.
type TypeTag struct {
	Kind    uint8
	Elem    *TypeTag // vector element
	Address string
	Module  string
	Name    string
	Params  []TypeTag
}

// ParseTypeTag parses types such as u64, vector<u8> or
// 0x2::coin::Coin<0x2::sui::SUI>.
func ParseTypeTag(s string) (TypeTag, error) {
	tag, rest, err := parseTypeTag(strings.TrimSpace(s))
	if err != nil {
		return TypeTag{}, err
	}
	if strings.TrimSpace(rest) != "" {
		return TypeTag{}, fmt.Errorf("type tag %q: trailing %q", s, rest)
	}
	return tag, nil
}

func parseTypeTag(s string) (TypeTag, string, error) {
	s = strings.TrimLeft(s, " ")
	end := strings.IndexAny(s, "<>, ")
	head := s
	if end >= 0 {
		head = s[:end]
	}
	if k, ok := primitiveTags[head]; ok {
		return TypeTag{Kind: k}, s[len(head):], nil
	}
	if head == "vector" {
		if end < 0 || s[end] != '<' {
			return TypeTag{}, "", fmt.Errorf("type tag %q: vector without element", s)
		}
		elem, rest, err := parseTypeTag(s[end+1:])
		if err != nil {
			return TypeTag{}, "", err
		}
		rest = strings.TrimLeft(rest, " ")
		if !strings.HasPrefix(rest, ">") {
			return TypeTag{}, "", fmt.Errorf("type tag %q: unclosed vector", s)
		}
		return TypeTag{Kind: tagVector, Elem: &elem}, rest[1:], nil
	}

	parts := strings.Split(head, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return TypeTag{}, "", fmt.Errorf("type tag %q: expected address::module::name", head)
	}
	tag := TypeTag{Kind: tagStruct, Address: parts[0], Module: parts[1], Name: parts[2]}
	rest := s[len(head):]
	if !strings.HasPrefix(rest, "<") {
		return tag, rest, nil
	}
	rest = rest[1:]
	for {
		param, r, err := parseTypeTag(rest)
		if err != nil {
			return TypeTag{}, "", err
		}
		tag.Params = append(tag.Params, param)
		r = strings.TrimLeft(r, " ")
		switch {
		case strings.HasPrefix(r, ","):
			rest = r[1:]
		case strings.HasPrefix(r, ">"):
			return tag, r[1:], nil
		default:
			return TypeTag{}, "", fmt.Errorf("type tag %q: unclosed type parameters", s)
		}
	}
}

func (w *bcsWriter) typeTag(t TypeTag) {
	w.uleb(uint64(t.Kind))
	switch t.Kind {
	case tagVector:
		w.typeTag(*t.Elem)
	case tagStruct:
		w.address(t.Address)
		w.str(t.Module)
		w.str(t.Name)
		w.uleb(uint64(len(t.Params)))
		for _, p := range t.Params {
			w.typeTag(p)
		}
	}
}

// EncodeTransactionData serializes tx as TransactionData::V1. Every
// object input and the gas payment must already be resolved.
func EncodeTransactionData(tx *ptb.Transaction) ([]byte, error) {
	if tx.Sender == "" {
		return nil, fmt.Errorf("transaction has no sender")
	}
	if len(tx.GasPayment) == 0 {
		return nil, fmt.Errorf("transaction has no gas payment")
	}
	w := &bcsWriter{}
	w.uleb(0) // TransactionData::V1
	w.uleb(0) // TransactionKind::ProgrammableTransaction

	w.uleb(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		w.input(in)
	}
	w.uleb(uint64(len(tx.Commands)))
	for _, c := range tx.Commands {
		w.command(c)
	}

	w.address(tx.Sender)

	w.uleb(uint64(len(tx.GasPayment)))
	for _, ref := range tx.GasPayment {
		w.objectRef(ref)
	}
	w.address(tx.Sender)
	w.u64(tx.GasPrice)
	w.u64(tx.GasBudget)

	w.uleb(0) // TransactionExpiration::None

	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}
