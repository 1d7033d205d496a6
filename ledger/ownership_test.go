// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger_test

import (
	"bytes"
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/herita/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHolder(b byte) lcommon.Blake2b224 {
	return lcommon.NewBlake2b224(bytes.Repeat([]byte{b}, 28))
}

func TestOwnershipEnumeration(t *testing.T) {
	o := ledger.NewOwnership()
	holder1 := testHolder(0x01)
	holder2 := testHolder(0x02)
	require.NoError(t, o.Mint(1, holder1))
	require.NoError(t, o.Mint(2, holder2))
	require.NoError(t, o.Mint(3, holder1))

	assert.Equal(t, uint64(3), o.TotalSupply())
	for i, expected := range []uint64{1, 2, 3} {
		tokenId, err := o.TokenByIndex(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, expected, tokenId)
	}
	_, err := o.TokenByIndex(3)
	require.ErrorIs(t, err, ledger.ErrIndexOutOfRange)

	assert.Equal(t, uint64(2), o.BalanceOf(holder1))
	assert.Equal(t, uint64(1), o.BalanceOf(holder2))
	tokenId, err := o.TokenOfOwnerByIndex(holder1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), tokenId)
	tokenId, err = o.TokenOfOwnerByIndex(holder2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tokenId)
	_, err = o.TokenOfOwnerByIndex(testHolder(0x03), 0)
	require.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
}

func TestOwnershipMintErrors(t *testing.T) {
	o := ledger.NewOwnership()
	require.ErrorIs(
		t,
		o.Mint(1, lcommon.NewBlake2b224(nil)),
		ledger.ErrNullHolder,
	)
	require.NoError(t, o.Mint(1, testHolder(0x01)))
	require.ErrorIs(t, o.Mint(1, testHolder(0x02)), ledger.ErrTokenExists)
	assert.Equal(t, uint64(1), o.TotalSupply())
}

func TestOwnershipTransfer(t *testing.T) {
	o := ledger.NewOwnership()
	holder1 := testHolder(0x01)
	holder2 := testHolder(0x02)
	require.NoError(t, o.Mint(1, holder1))
	require.NoError(t, o.Mint(2, holder1))
	require.NoError(t, o.Mint(3, holder1))

	require.NoError(t, o.Transfer(2, holder1, holder2))
	owner, err := o.OwnerOf(2)
	require.NoError(t, err)
	assert.Equal(t, holder2, owner)
	assert.Equal(t, []uint64{1, 3}, o.TokensOf(holder1))
	assert.Equal(t, []uint64{2}, o.TokensOf(holder2))

	// Global order is not affected by transfers
	tokenId, err := o.TokenByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tokenId)

	require.ErrorIs(t, o.Transfer(2, holder1, holder2), ledger.ErrNotHolder)
	require.ErrorIs(t, o.Transfer(9, holder1, holder2), ledger.ErrTokenNotFound)
	require.ErrorIs(
		t,
		o.Transfer(1, holder1, lcommon.NewBlake2b224(nil)),
		ledger.ErrNullHolder,
	)

	// Moving the last token removes the holder entirely
	require.NoError(t, o.Transfer(2, holder2, holder1))
	assert.Equal(t, uint64(0), o.BalanceOf(holder2))
	assert.Equal(t, []uint64{1, 3, 2}, o.TokensOf(holder1))
}

func TestOwnershipOwnerOfMissing(t *testing.T) {
	o := ledger.NewOwnership()
	_, err := o.OwnerOf(1)
	require.ErrorIs(t, err, ledger.ErrTokenNotFound)
}
