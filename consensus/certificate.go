package consensus

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Certificate is a sealed sidechain certificate. Its fields cannot change
// after sealing, so the cached hash always matches Bytes(). Copying the value
// copies the hash.
type Certificate struct {
	entryBase
	scID        Hash
	totalAmount Amount
	vbtOut      []BackwardTransferOut
	nonce       Hash
}

// NewCertificate seals a certificate from explicit fields. Slices are copied.
func NewCertificate(version int32, scID Hash, totalAmount Amount, outputs []TxOut, bwts []BackwardTransferOut, nonce Hash) *Certificate {
	c := &Certificate{
		entryBase: entryBase{
			version: version,
			vout:    cloneTxOuts(outputs),
		},
		scID:        scID,
		totalAmount: totalAmount,
		vbtOut:      append([]BackwardTransferOut(nil), bwts...),
		nonce:       nonce,
	}
	c.hash = serializeHash(c.Bytes())
	return c
}

func (c *Certificate) ScID() Hash { return c.scID }
func (c *Certificate) TotalAmount() Amount { return c.totalAmount }
func (c *Certificate) Nonce() Hash { return c.nonce }
func (c *Certificate) IsCertificate() bool { return true }

func (c *Certificate) BackwardTransfers() []BackwardTransferOut {
	return append([]BackwardTransferOut(nil), c.vbtOut...)
}

// FeeAmount is TotalAmount minus ValueOut. It may be negative; Check does not
// cross-check the two.
func (c *Certificate) FeeAmount() (Amount, error) {
	out, err := c.ValueOut()
	if err != nil {
		return 0, err
	}
	return c.totalAmount - out, nil
}

// Bytes returns the canonical encoding.
func (c *Certificate) Bytes() []byte {
	return appendCertificate(make([]byte, 0, c.SerializedSize()), c.version, c.scID, c.totalAmount, c.vout, c.vbtOut, c.nonce)
}

func (c *Certificate) SerializedSize() int {
	return certificateSize(c.vout, c.vbtOut)
}

// ModifiedSize is the size used for fee-rate priority. Certificates have no
// inputs, so nothing is discounted.
func (c *Certificate) ModifiedSize() int {
	return c.SerializedSize()
}

func (c *Certificate) EncodeHex() string {
	return hex.EncodeToString(c.Bytes())
}

// String renders a one-line header followed by each ordinary output.
// Backward transfers are not listed.
func (c *Certificate) String() string {
	whole, frac := c.totalAmount.WholeFrac()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Certificate(hash=%s, ver=%d, vout.size=%d, totAmount=%d.%08d\n)\n",
		c.hash.String()[:10], c.version, len(c.vout), whole, frac)
	for _, o := range c.vout {
		sb.WriteString("    ")
		sb.WriteString(o.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// CertificateBuilder stages certificate fields before sealing.
type CertificateBuilder struct {
	Version           int32
	ScID              Hash
	TotalAmount       Amount
	Outputs           []TxOut
	BackwardTransfers []BackwardTransferOut
	Nonce             Hash
}

func NewCertificateBuilder(scID Hash) *CertificateBuilder {
	return &CertificateBuilder{Version: CERT_VERSION, ScID: scID}
}

// BuilderFromCertificate returns a builder holding a deep copy of c's fields.
func BuilderFromCertificate(c *Certificate) *CertificateBuilder {
	return &CertificateBuilder{
		Version:           c.version,
		ScID:              c.scID,
		TotalAmount:       c.totalAmount,
		Outputs:           c.Outputs(),
		BackwardTransfers: c.BackwardTransfers(),
		Nonce:             c.nonce,
	}
}

func (b *CertificateBuilder) AddOutput(value Amount, script Script) *CertificateBuilder {
	b.Outputs = append(b.Outputs, TxOut{Value: value, ScriptPubKey: append(Script(nil), script...)})
	return b
}

func (b *CertificateBuilder) AddBackwardTransfer(value Amount, pubKeyHash [20]byte) *CertificateBuilder {
	b.BackwardTransfers = append(b.BackwardTransfers, BackwardTransferOut{Value: value, PubKeyHash: pubKeyHash})
	return b
}

func (b *CertificateBuilder) Bytes() []byte {
	return appendCertificate(nil, b.Version, b.ScID, b.TotalAmount, b.Outputs, b.BackwardTransfers, b.Nonce)
}

// Hash is recomputed from the current fields on every call.
func (b *CertificateBuilder) Hash() Hash {
	return serializeHash(b.Bytes())
}

// Seal copies the staged fields into a new Certificate. Later changes to the
// builder do not affect it.
func (b *CertificateBuilder) Seal() *Certificate {
	return NewCertificate(b.Version, b.ScID, b.TotalAmount, b.Outputs, b.BackwardTransfers, b.Nonce)
}
