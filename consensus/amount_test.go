package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	cases := map[Amount]string{
		0:             "0.00",
		1:             "0.00000001",
		COIN:          "1.00",
		COIN + COIN/2: "1.50",
		12345678:      "0.12345678",
		MAX_MONEY:     "21000000.00",
		-COIN - 1:     "-1.00000001",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(in), "FormatMoney(%d)", int64(in))
	}
}

func TestParseMoney(t *testing.T) {
	v, err := ParseMoney("1.5")
	require.NoError(t, err)
	assert.Equal(t, COIN+COIN/2, v)

	v, err = ParseMoney(" 0.00000001 ")
	require.NoError(t, err)
	assert.Equal(t, Amount(1), v)

	for _, bad := range []string{"", "abc", "0.000000001", "21000000.00000001", "-1"} {
		_, err := ParseMoney(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddAmounts(t *testing.T) {
	s, err := AddAmounts(MAX_MONEY-1, 1)
	require.NoError(t, err)
	assert.Equal(t, MAX_MONEY, s)

	_, err = AddAmounts(MAX_MONEY, 1)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
	_, err = AddAmounts(-1, 1)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestWholeFrac(t *testing.T) {
	w, f := (3*COIN + 42).WholeFrac()
	assert.Equal(t, int64(3), w)
	assert.Equal(t, int64(42), f)
}
