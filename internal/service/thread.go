package service

import (
	"tableside/internal/models"
)

// BuildThread reconstructs a comment forest from a flat, parent-referencing
// slice. Two passes, no recursion, bounded by input size:
//
// Pass 1 maps every comment id to a fresh node. Pass 2 walks the slice in its
// original creation order and appends each node to its parent's replies; a
// comment with no parent, or whose parent is absent from the input (hard
// deletion upstream, or a soft-deleted parent filtered out of the fetch),
// becomes a root. Root order and reply order are both creation order.
//
// The result is deterministic and idempotent: the same input always yields a
// structurally identical forest.
func BuildThread(comments []*models.Comment) []*models.CommentNode {
	nodes := make(map[uint]*models.CommentNode, len(comments))
	for _, c := range comments {
		copied := *c
		nodes[c.ID] = &models.CommentNode{Comment: copied, Replies: []*models.CommentNode{}}
	}

	roots := make([]*models.CommentNode, 0, len(comments))
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// CountNodes counts every node in the forest, roots included. Iterative so
// arbitrarily deep threads cannot exhaust the stack.
func CountNodes(roots []*models.CommentNode) int {
	count := 0
	stack := make([]*models.CommentNode, len(roots))
	copy(stack, roots)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, node.Replies...)
	}
	return count
}
