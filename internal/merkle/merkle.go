/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package merkle builds binary hash trees over batch leaves and
// derives per-leaf sibling paths. Odd layers are padded by duplicating
// the last node, not by zero-padding, to avoid the second-preimage
// weakness of zero leaves.
package merkle

import "crypto/sha256"

func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Root computes the Merkle root over the leaves in order. A single
// leaf is its own root; no leaves yield nil.
func Root(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return nil
	}
	layer := make([][]byte, len(leaves))
	copy(layer, leaves)
	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		layer = next
	}
	return layer[0]
}

// Path derives the sibling-hash path for the leaf at index, bottom up.
// Where a node has no right sibling its own hash is recorded, matching
// the duplicate-last padding used by Root.
func Path(leaves [][]byte, index int) [][]byte {
	if index < 0 || index >= len(leaves) {
		return nil
	}
	layer := make([][]byte, len(leaves))
	copy(layer, leaves)

	var path [][]byte
	idx := index
	for len(layer) > 1 {
		sibling := idx ^ 1
		if sibling >= len(layer) {
			sibling = idx
		}
		path = append(path, layer[sibling])

		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		layer = next
		idx /= 2
	}
	return path
}

// Replay recomputes the root from a leaf and its sibling path. The
// leaf index determines left/right ordering at each level.
func Replay(leaf []byte, index int, siblings [][]byte) []byte {
	node := leaf
	for _, sibling := range siblings {
		if index%2 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
		index /= 2
	}
	return node
}
