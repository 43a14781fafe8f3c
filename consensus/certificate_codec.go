package consensus

import (
	"encoding/hex"
	"strings"
)

func appendCertificate(b []byte, version int32, scID Hash, total Amount, vout []TxOut, bwts []BackwardTransferOut, nonce Hash) []byte {
	b = AppendI32LE(b, version)
	b = append(b, scID[:]...)
	b = AppendI64LE(b, int64(total))
	b = AppendCompactSize(b, uint64(len(vout)))
	for _, o := range vout {
		b = AppendTxOut(b, o)
	}
	b = AppendCompactSize(b, uint64(len(bwts)))
	for _, o := range bwts {
		b = AppendBackwardTransferOut(b, o)
	}
	return append(b, nonce[:]...)
}

func certificateSize(vout []TxOut, bwts []BackwardTransferOut) int {
	n := 4 + 32 + 8 + CompactSizeLen(uint64(len(vout)))
	for _, o := range vout {
		n += txOutSize(o)
	}
	n += CompactSizeLen(uint64(len(bwts))) + len(bwts)*bwtSize
	return n + 32
}

// ParseCertificate decodes the canonical encoding. Truncated input,
// non-minimal CompactSize values and trailing bytes are rejected.
func ParseCertificate(b []byte) (*Certificate, error) {
	r := NewReader(b)
	version, err := r.ReadI32LE()
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, "version: "+err.Error())
	}
	scID, err := r.ReadHash()
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, "scId: "+err.Error())
	}
	total, err := r.ReadI64LE()
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, "totalAmount: "+err.Error())
	}
	nOut, err := r.ReadCompactSize("vout count")
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, err.Error())
	}
	// each output takes at least 9 bytes
	vout := make([]TxOut, 0, min(nOut, r.Remaining()/9))
	for i := 0; i < nOut; i++ {
		o, err := ReadTxOut(r)
		if err != nil {
			return nil, certerr(CERT_ERR_PARSE, "vout: "+err.Error())
		}
		vout = append(vout, o)
	}
	nBwt, err := r.ReadCompactSize("vbt_ccout count")
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, err.Error())
	}
	bwts := make([]BackwardTransferOut, 0, min(nBwt, r.Remaining()/bwtSize))
	for i := 0; i < nBwt; i++ {
		o, err := ReadBackwardTransferOut(r)
		if err != nil {
			return nil, certerr(CERT_ERR_PARSE, "vbt_ccout: "+err.Error())
		}
		bwts = append(bwts, o)
	}
	nonce, err := r.ReadHash()
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, "nonce: "+err.Error())
	}
	if err := r.Done(); err != nil {
		return nil, certerr(CERT_ERR_PARSE, err.Error())
	}
	c := &Certificate{
		entryBase:   entryBase{version: version, vout: vout},
		scID:        scID,
		totalAmount: Amount(total),
		vbtOut:      bwts,
		nonce:       nonce,
	}
	c.hash = serializeHash(b)
	return c, nil
}

func DecodeCertificateHex(s string) (*Certificate, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, "hex: "+err.Error())
	}
	return ParseCertificate(b)
}
