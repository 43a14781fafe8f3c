package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"sccert.dev/node/consensus"
	"sccert.dev/node/node"
	"sccert.dev/node/sidechain"
)

type Request struct {
	Op       string `json:"op"`
	CertHex  string `json:"cert_hex,omitempty"`
	BlockHex string `json:"block_hex,omitempty"`

	ScID        string       `json:"scid,omitempty"`
	TotalAmount string       `json:"total_amount,omitempty"`
	Outputs     []OutputJSON `json:"outputs,omitempty"`
	BwtOutputs  []BwtJSON    `json:"bwt_outputs,omitempty"`
	Nonce       string       `json:"nonce,omitempty"`

	Height      int   `json:"height,omitempty"`
	MinRelayFee int64 `json:"min_relay_fee_per_kb,omitempty"`
}

type OutputJSON struct {
	Value     string `json:"value"`
	ScriptHex string `json:"script_hex"`
}

type BwtJSON struct {
	Value      string `json:"value"`
	PubKeyHash string `json:"pubkey_hash"`
}

type Response struct {
	Ok  bool   `json:"ok"`
	Err string `json:"err,omitempty"`

	CertHex     string `json:"cert_hex,omitempty"`
	Hash        string `json:"hash,omitempty"`
	ScID        string `json:"scid,omitempty"`
	TotalAmount string `json:"total_amount,omitempty"`
	Fee         string `json:"fee,omitempty"`
	Outputs     int    `json:"outputs,omitempty"`
	BwtOutputs  int    `json:"bwt_outputs,omitempty"`
	Size        int    `json:"size,omitempty"`
	Text        string `json:"text,omitempty"`

	Valid          *bool  `json:"valid,omitempty"`
	RejectCode     string `json:"reject_code,omitempty"`
	RejectReason   string `json:"reject_reason,omitempty"`
	DoS            int    `json:"dos,omitempty"`
	Standard       *bool  `json:"standard,omitempty"`
	StandardReason string `json:"standard_reason,omitempty"`

	Txs        int    `json:"txs,omitempty"`
	Certs      int    `json:"certs,omitempty"`
	MerkleOK   bool   `json:"merkle_ok,omitempty"`
	MerkleRoot string `json:"merkle_root,omitempty"`
}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func writeConsensusErr(w io.Writer, err error) {
	var ce *consensus.CertError
	if errors.As(err, &ce) {
		writeResp(w, Response{Ok: false, Err: string(ce.Code)})
		return
	}
	writeResp(w, Response{Ok: false, Err: err.Error()})
}

func parseHash(s string) (consensus.Hash, error) {
	if s == "" {
		return consensus.Hash{}, nil
	}
	return consensus.HashFromString(s)
}

func buildCertificate(req Request) (*consensus.Certificate, error) {
	scID, err := parseHash(req.ScID)
	if err != nil {
		return nil, errors.Wrap(err, "bad scid")
	}
	b := consensus.NewCertificateBuilder(scID)
	if b.TotalAmount, err = consensus.ParseMoney(req.TotalAmount); err != nil {
		return nil, errors.Wrap(err, "bad total_amount")
	}
	if b.Nonce, err = parseHash(req.Nonce); err != nil {
		return nil, errors.Wrap(err, "bad nonce")
	}
	for i, o := range req.Outputs {
		v, err := consensus.ParseMoney(o.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "bad outputs[%d].value", i)
		}
		script, err := hex.DecodeString(o.ScriptHex)
		if err != nil {
			return nil, errors.Errorf("bad outputs[%d].script_hex", i)
		}
		b.AddOutput(v, script)
	}
	for i, o := range req.BwtOutputs {
		v, err := consensus.ParseMoney(o.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "bad bwt_outputs[%d].value", i)
		}
		raw, err := hex.DecodeString(o.PubKeyHash)
		if err != nil || len(raw) != 20 {
			return nil, errors.Errorf("bad bwt_outputs[%d].pubkey_hash", i)
		}
		var pkh [20]byte
		copy(pkh[:], raw)
		b.AddBackwardTransfer(v, pkh)
	}
	return b.Seal(), nil
}

func describe(cert *consensus.Certificate) Response {
	resp := Response{
		Ok:          true,
		CertHex:     cert.EncodeHex(),
		Hash:        cert.Hash().String(),
		ScID:        cert.ScID().String(),
		TotalAmount: consensus.FormatMoney(cert.TotalAmount()),
		Outputs:     len(cert.Outputs()),
		BwtOutputs:  len(cert.BackwardTransfers()),
		Size:        cert.SerializedSize(),
		Text:        cert.String(),
	}
	if fee, err := cert.FeeAmount(); err == nil {
		resp.Fee = consensus.FormatMoney(fee)
	}
	return resp
}

func runRequest(r io.Reader, w io.Writer) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		writeResp(w, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		return
	}

	switch req.Op {
	case "decode_cert":
		cert, err := consensus.DecodeCertificateHex(req.CertHex)
		if err != nil {
			writeConsensusErr(w, err)
			return
		}
		writeResp(w, describe(cert))
		return

	case "build_cert":
		cert, err := buildCertificate(req)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: err.Error()})
			return
		}
		writeResp(w, describe(cert))
		return

	case "check_cert":
		cert, err := consensus.DecodeCertificateHex(req.CertHex)
		if err != nil {
			writeConsensusErr(w, err)
			return
		}
		registry, err := sidechain.NewManager(sidechain.NewMemBackend(), 0, nil)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: err.Error()})
			return
		}
		var state consensus.ValidationState
		valid := consensus.CheckCertificate(cert, &state, registry)
		resp := describe(cert)
		resp.Valid = &valid
		if !valid {
			resp.RejectCode = state.RejectCode().String()
			resp.RejectReason = state.RejectReason()
			resp.DoS = state.DoSScore()
		}
		fee := req.MinRelayFee
		if fee == 0 {
			fee = node.DefaultConfig().MinRelayFeePerKB
		}
		standard, reason := cert.IsStandard(node.NewStandardPolicy(consensus.Amount(fee)), req.Height)
		resp.Standard = &standard
		resp.StandardReason = reason
		writeResp(w, resp)
		return

	case "decode_block":
		raw, err := hex.DecodeString(req.BlockHex)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad hex"})
			return
		}
		blk, err := consensus.ParseBlock(raw)
		if err != nil {
			writeConsensusErr(w, err)
			return
		}
		root := blk.ComputeMerkleRoot()
		writeResp(w, Response{
			Ok:         true,
			Hash:       blk.Hash().String(),
			Txs:        len(blk.Txs),
			Certs:      len(blk.Certs),
			MerkleOK:   root == blk.Header.MerkleRoot,
			MerkleRoot: root.String(),
		})
		return

	default:
		writeResp(w, Response{Ok: false, Err: "unknown op"})
		return
	}
}
