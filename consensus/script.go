package consensus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

type OpCode byte

const (
	OP_0                  OpCode = 0x00
	OP_PUSHDATA1          OpCode = 0x4c
	OP_PUSHDATA2          OpCode = 0x4d
	OP_PUSHDATA4          OpCode = 0x4e
	OP_1NEGATE            OpCode = 0x4f
	OP_1                  OpCode = 0x51
	OP_16                 OpCode = 0x60
	OP_RETURN             OpCode = 0x6a
	OP_DUP                OpCode = 0x76
	OP_EQUAL              OpCode = 0x87
	OP_EQUALVERIFY        OpCode = 0x88
	OP_HASH160            OpCode = 0xa9
	OP_CHECKSIG           OpCode = 0xac
	OP_CHECKBLOCKATHEIGHT OpCode = 0xb4
)

var opNames = map[OpCode]string{
	OP_0:                  "OP_0",
	OP_PUSHDATA1:          "OP_PUSHDATA1",
	OP_PUSHDATA2:          "OP_PUSHDATA2",
	OP_PUSHDATA4:          "OP_PUSHDATA4",
	OP_1NEGATE:            "OP_1NEGATE",
	OP_RETURN:             "OP_RETURN",
	OP_DUP:                "OP_DUP",
	OP_EQUAL:              "OP_EQUAL",
	OP_EQUALVERIFY:        "OP_EQUALVERIFY",
	OP_HASH160:            "OP_HASH160",
	OP_CHECKSIG:           "OP_CHECKSIG",
	OP_CHECKBLOCKATHEIGHT: "OP_CHECKBLOCKATHEIGHT",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	if op >= OP_1 && op <= OP_16 {
		return fmt.Sprintf("OP_%d", int(op-OP_1)+1)
	}
	return fmt.Sprintf("OP_UNKNOWN(0x%02x)", byte(op))
}

// Op is one parsed script instruction. Data is set for push opcodes only.
type Op struct {
	Code OpCode
	Data []byte
}

func (o Op) isPush() bool {
	return o.Code <= OP_PUSHDATA4
}

// smallInt reports the value of OP_0, OP_1NEGATE or OP_1..OP_16.
func (o Op) smallInt() (int64, bool) {
	switch {
	case o.Code == OP_0:
		return 0, true
	case o.Code == OP_1NEGATE:
		return -1, true
	case o.Code >= OP_1 && o.Code <= OP_16:
		return int64(o.Code-OP_1) + 1, true
	}
	return 0, false
}

// Script is a locking or unlocking script as raw bytes.
type Script []byte

// ParseOps splits s into instructions. On a truncated push it returns the
// instructions parsed so far along with the error.
func ParseOps(s Script) ([]Op, error) {
	ops := make([]Op, 0, len(s)/2)
	for i := 0; i < len(s); {
		code := OpCode(s[i])
		i++
		var n int
		switch {
		case code > OP_0 && code < OP_PUSHDATA1:
			n = int(code)
		case code == OP_PUSHDATA1:
			if len(s)-i < 1 {
				return ops, fmt.Errorf("script: truncated PUSHDATA1 length")
			}
			n = int(s[i])
			i++
		case code == OP_PUSHDATA2:
			if len(s)-i < 2 {
				return ops, fmt.Errorf("script: truncated PUSHDATA2 length")
			}
			n = int(binary.LittleEndian.Uint16(s[i : i+2]))
			i += 2
		case code == OP_PUSHDATA4:
			if len(s)-i < 4 {
				return ops, fmt.Errorf("script: truncated PUSHDATA4 length")
			}
			l := binary.LittleEndian.Uint32(s[i : i+4])
			if uint64(l) > uint64(len(s)) {
				return ops, fmt.Errorf("script: push exceeds script")
			}
			n = int(l)
			i += 4
		default:
			ops = append(ops, Op{Code: code})
			continue
		}
		if len(s)-i < n {
			return ops, fmt.Errorf("script: push of %d bytes exceeds script", n)
		}
		data := []byte{}
		if n > 0 {
			data = s[i : i+n]
		}
		ops = append(ops, Op{Code: code, Data: data})
		i += n
	}
	return ops, nil
}

// pushHeight decodes a block height pushed either as a small integer opcode
// or as a minimal little-endian script number of one to four bytes.
func pushHeight(o Op) (int64, bool) {
	if v, ok := o.smallInt(); ok {
		return v, v >= 0
	}
	if o.Code < 1 || o.Code > 4 || len(o.Data) != int(o.Code) {
		return 0, false
	}
	var v int64
	for i, b := range o.Data {
		v |= int64(b) << (8 * i)
	}
	last := o.Data[len(o.Data)-1]
	if last&0x80 != 0 {
		// negative script numbers are never valid heights
		return 0, false
	}
	return v, true
}

// CheckBlockAtHeightParams extracts the block hash and height bound by the
// trailing `<hash> <height> OP_CHECKBLOCKATHEIGHT` suffix.
func (s Script) CheckBlockAtHeightParams() (Hash, int64, bool) {
	ops, err := ParseOps(s)
	if err != nil || len(ops) < 3 {
		return Hash{}, 0, false
	}
	n := len(ops)
	if ops[n-1].Code != OP_CHECKBLOCKATHEIGHT {
		return Hash{}, 0, false
	}
	hashOp, heightOp := ops[n-3], ops[n-2]
	if !hashOp.isPush() || len(hashOp.Data) != 32 {
		return Hash{}, 0, false
	}
	height, ok := pushHeight(heightOp)
	if !ok {
		return Hash{}, 0, false
	}
	var h Hash
	copy(h[:], hashOp.Data)
	return h, height, true
}

// HasCheckBlockAtHeight reports whether s carries the height-binding replay
// protection suffix.
func (s Script) HasCheckBlockAtHeight() bool {
	_, _, ok := s.CheckBlockAtHeightParams()
	return ok
}

// IsUnspendable reports scripts that can never be satisfied: unparseable
// scripts and those beginning with OP_RETURN.
func (s Script) IsUnspendable() bool {
	ops, err := ParseOps(s)
	if err != nil {
		return true
	}
	return len(ops) > 0 && ops[0].Code == OP_RETURN
}

// String disassembles the script. Pushes render as hex.
func (s Script) String() string {
	ops, err := ParseOps(s)
	parts := make([]string, 0, len(ops)+1)
	for _, o := range ops {
		switch {
		case o.Code == OP_0:
			parts = append(parts, "0")
		case o.isPush():
			parts = append(parts, hex.EncodeToString(o.Data))
		default:
			if v, ok := o.smallInt(); ok {
				parts = append(parts, fmt.Sprintf("%d", v))
				continue
			}
			parts = append(parts, o.Code.String())
		}
	}
	if err != nil {
		parts = append(parts, "[error]")
	}
	return strings.Join(parts, " ")
}

// ScriptBuilder appends opcodes and minimal pushes to a script.
type ScriptBuilder struct {
	script []byte
}

func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{script: make([]byte, 0, 64)}
}

func (b *ScriptBuilder) AddOp(op OpCode) *ScriptBuilder {
	b.script = append(b.script, byte(op))
	return b
}

// AddData pushes data using the smallest push opcode able to carry it.
func (b *ScriptBuilder) AddData(data []byte) *ScriptBuilder {
	n := len(data)
	switch {
	case n == 0:
		b.script = append(b.script, byte(OP_0))
		return b
	case n < int(OP_PUSHDATA1):
		b.script = append(b.script, byte(n))
	case n <= 0xff:
		b.script = append(b.script, byte(OP_PUSHDATA1), byte(n))
	case n <= 0xffff:
		b.script = append(b.script, byte(OP_PUSHDATA2), byte(n), byte(n>>8))
	default:
		b.script = append(b.script, byte(OP_PUSHDATA4))
		b.script = AppendU32LE(b.script, uint32(n)) // #nosec G115 -- script pushes are bounded by MAX_SIZE.
	}
	b.script = append(b.script, data...)
	return b
}

// AddHeight pushes a non-negative block height as a small integer opcode or a
// minimal script number.
func (b *ScriptBuilder) AddHeight(height int64) *ScriptBuilder {
	if height == 0 {
		return b.AddOp(OP_0)
	}
	if height >= 1 && height <= 16 {
		return b.AddOp(OP_1 + OpCode(height-1))
	}
	var num []byte
	for v := height; v > 0; v >>= 8 {
		num = append(num, byte(v))
	}
	if num[len(num)-1]&0x80 != 0 {
		num = append(num, 0x00)
	}
	return b.AddData(num)
}

func (b *ScriptBuilder) Script() Script {
	return append(Script(nil), b.script...)
}

func (b *ScriptBuilder) addReplayProtection(blockHash Hash, height int64) *ScriptBuilder {
	return b.AddData(blockHash[:]).AddHeight(height).AddOp(OP_CHECKBLOCKATHEIGHT)
}

// P2PKHReplayScript pays to a public-key hash and binds the output to the
// block blockHash at height.
func P2PKHReplayScript(pubKeyHash [20]byte, blockHash Hash, height int64) Script {
	return NewScriptBuilder().
		AddOp(OP_DUP).AddOp(OP_HASH160).AddData(pubKeyHash[:]).AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		addReplayProtection(blockHash, height).
		Script()
}

func P2SHReplayScript(scriptHash [20]byte, blockHash Hash, height int64) Script {
	return NewScriptBuilder().
		AddOp(OP_HASH160).AddData(scriptHash[:]).AddOp(OP_EQUAL).
		addReplayProtection(blockHash, height).
		Script()
}

func NullDataReplayScript(data []byte, blockHash Hash, height int64) Script {
	return NewScriptBuilder().
		AddOp(OP_RETURN).AddData(data).
		addReplayProtection(blockHash, height).
		Script()
}

// P2PKHScript is the plain pay-to-pubkey-hash form without replay protection.
func P2PKHScript(pubKeyHash [20]byte) Script {
	return NewScriptBuilder().
		AddOp(OP_DUP).AddOp(OP_HASH160).AddData(pubKeyHash[:]).AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		Script()
}
