package sidechain

import (
	"fmt"
	"sort"

	"sccert.dev/node/consensus"
)

// Info is the registry record of one sidechain.
type Info struct {
	CreationBlockHash consensus.Hash `json:"creationBlockHash"`
	CreationHeight    int            `json:"creationHeight"`
	CreationTxHash    consensus.Hash `json:"creationTxHash"`
	// Balance is the matured amount available to back certificates.
	Balance consensus.Amount `json:"balance"`
	// ImmatureAmounts maps maturity height to the forward-transferred amount
	// that becomes spendable at that height.
	ImmatureAmounts map[int]consensus.Amount `json:"immatureAmounts"`
}

func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	cp := *i
	cp.ImmatureAmounts = make(map[int]consensus.Amount, len(i.ImmatureAmounts))
	for h, a := range i.ImmatureAmounts {
		cp.ImmatureAmounts[h] = a
	}
	return &cp
}

// MaturityHeights returns the keys of ImmatureAmounts in ascending order.
func (i *Info) MaturityHeights() []int {
	hs := make([]int, 0, len(i.ImmatureAmounts))
	for h := range i.ImmatureAmounts {
		hs = append(hs, h)
	}
	sort.Ints(hs)
	return hs
}

func (i *Info) String() string {
	return fmt.Sprintf("ScInfo(created=%d, tx=%s, balance=%s, immature=%d)",
		i.CreationHeight, i.CreationTxHash.String()[:10], consensus.FormatMoney(i.Balance), len(i.ImmatureAmounts))
}
