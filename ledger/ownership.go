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

package ledger

import (
	"errors"
	"fmt"
	"slices"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

var (
	ErrTokenExists     = errors.New("token already minted")
	ErrTokenNotFound   = errors.New("token does not exist")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNullHolder      = errors.New("null holder")
	ErrNotHolder       = errors.New("sender is not the token holder")
)

// Ownership tracks which identity holds each token and provides the
// enumerable views of the token set: all tokens in mint order, and the
// tokens of each holder in the order they were received.
//
// Ownership does no locking of its own. The owner (the certification
// registry) serializes access to it.
type Ownership struct {
	tokens  []uint64
	holders map[uint64]lcommon.Blake2b224
	owned   map[lcommon.Blake2b224][]uint64
}

func NewOwnership() *Ownership {
	return &Ownership{
		holders: make(map[uint64]lcommon.Blake2b224),
		owned:   make(map[lcommon.Blake2b224][]uint64),
	}
}

// Mint records a new token held by the given identity
func (o *Ownership) Mint(tokenId uint64, holder lcommon.Blake2b224) error {
	if holder == lcommon.NewBlake2b224(nil) {
		return ErrNullHolder
	}
	if _, ok := o.holders[tokenId]; ok {
		return fmt.Errorf("%w: %d", ErrTokenExists, tokenId)
	}
	o.tokens = append(o.tokens, tokenId)
	o.holders[tokenId] = holder
	o.owned[holder] = append(o.owned[holder], tokenId)
	return nil
}

// Transfer moves a token from its current holder to a new one. The
// remaining tokens of the previous holder keep their relative order.
func (o *Ownership) Transfer(
	tokenId uint64,
	from lcommon.Blake2b224,
	to lcommon.Blake2b224,
) error {
	holder, ok := o.holders[tokenId]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTokenNotFound, tokenId)
	}
	if holder != from {
		return ErrNotHolder
	}
	if to == lcommon.NewBlake2b224(nil) {
		return ErrNullHolder
	}
	if from == to {
		return nil
	}
	fromTokens := o.owned[from]
	idx := slices.Index(fromTokens, tokenId)
	fromTokens = slices.Delete(fromTokens, idx, idx+1)
	if len(fromTokens) == 0 {
		delete(o.owned, from)
	} else {
		o.owned[from] = fromTokens
	}
	o.owned[to] = append(o.owned[to], tokenId)
	o.holders[tokenId] = to
	return nil
}

// OwnerOf returns the current holder of a token
func (o *Ownership) OwnerOf(tokenId uint64) (lcommon.Blake2b224, error) {
	holder, ok := o.holders[tokenId]
	if !ok {
		return lcommon.Blake2b224{}, fmt.Errorf(
			"%w: %d",
			ErrTokenNotFound,
			tokenId,
		)
	}
	return holder, nil
}

// BalanceOf returns the number of tokens held by an identity
func (o *Ownership) BalanceOf(holder lcommon.Blake2b224) uint64 {
	return uint64(len(o.owned[holder]))
}

// TotalSupply returns the number of tokens ever minted
func (o *Ownership) TotalSupply() uint64 {
	return uint64(len(o.tokens))
}

// TokenByIndex returns the token at a zero-based position in mint order
func (o *Ownership) TokenByIndex(index uint64) (uint64, error) {
	if index >= uint64(len(o.tokens)) {
		return 0, fmt.Errorf(
			"%w: %d >= %d",
			ErrIndexOutOfRange,
			index,
			len(o.tokens),
		)
	}
	return o.tokens[index], nil
}

// TokenOfOwnerByIndex returns the token at a zero-based position in the
// holder's list of tokens
func (o *Ownership) TokenOfOwnerByIndex(
	holder lcommon.Blake2b224,
	index uint64,
) (uint64, error) {
	tokens := o.owned[holder]
	if index >= uint64(len(tokens)) {
		return 0, fmt.Errorf(
			"%w: %d >= %d",
			ErrIndexOutOfRange,
			index,
			len(tokens),
		)
	}
	return tokens[index], nil
}

// TokensOf returns a copy of all tokens held by an identity
func (o *Ownership) TokensOf(holder lcommon.Blake2b224) []uint64 {
	return slices.Clone(o.owned[holder])
}
